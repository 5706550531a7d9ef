package main

import (
	"context"

	"github.com/samcharles93/maskfill/internal/api"
	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/fillmask"
	"github.com/samcharles93/maskfill/internal/hub"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

// stubMask is the mask token of --stub pipelines.
const stubMask = "<mask>"

// stubLoader serves a local pipeline that proposes fixed tokens, so specs can be
// tried without a model or network access.
type stubLoader struct {
	tokens []string
}

func (l stubLoader) Load(context.Context, string, string) (pipeline.Pipeline, error) {
	return pipeline.Filler(stubMask, l.tokens...), nil
}

func newHubClient() *hub.Client {
	return hub.New(hub.WithBaseURL(hubURL), hub.WithToken(token))
}

func newPipelineProvider(cfg api.PipelineProviderConfig, stubTokens []string) *api.CachedPipelineProvider {
	var loader fillmask.PipelineLoader = &pipeline.Loader{
		Endpoint: endpoint,
		Hub:      newHubClient(),
		Token:    token,
		CacheTTL: cacheTTL,
	}
	if len(stubTokens) > 0 {
		loader = stubLoader{tokens: stubTokens}
	}
	cfg.Loader = loader
	return api.NewCachedPipelineProvider(cfg)
}

// newRegistry returns the built-in field types plus hf-fill-mask.
func newRegistry(pipelines fillmask.PipelineLoader) (*datagen.Registry, error) {
	reg := datagen.NewRegistry()
	if err := fillmask.Register(reg, pipelines); err != nil {
		return nil, err
	}
	return reg, nil
}
