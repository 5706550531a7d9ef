package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samcharles93/maskfill/internal/hub"
	"github.com/samcharles93/maskfill/internal/logger"
	"github.com/samcharles93/maskfill/internal/tokenizer"
	"github.com/samcharles93/maskfill/internal/version"
)

// Loader resolves and loads pipelines.
type Loader struct {
	// Endpoint is the inference server root; DefaultEndpoint when empty.
	Endpoint string
	// Hub resolves tokenizer files when no local directory is given.
	Hub *hub.Client
	// Token is sent as a bearer token to the inference endpoint.
	Token string
	// HTTPClient is used for inference calls.
	HTTPClient *http.Client
	// CacheTTL enables candidate caching when positive.
	CacheTTL time.Duration
	Logger   logger.Logger
}

// Load returns a ready pipeline. With a valid modelDir the model identity and the
// tokenizer come from that directory; otherwise name is resolved through the Hub.
// Failures are InferenceErrors.
func (l *Loader) Load(ctx context.Context, name, modelDir string) (Pipeline, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTask
	}
	log := l.log(ctx).With("pipeline", name)

	var (
		model   string
		special tokenizer.SpecialTokens
		err     error
	)
	if ModelDirIsValid(modelDir) {
		dir := strings.TrimSpace(modelDir)
		log.Debug("loading pipeline from directory", "dir", dir)
		model, err = modelFromDir(dir)
		if err != nil {
			return nil, &InferenceError{Op: "load", Model: dir, Err: err}
		}
		special, err = tokenizer.LoadSpecialTokens(dir)
	} else {
		model, _ = ResolveModel(name)
		log.Debug("loading pipeline from hub", "model", model)
		special, err = l.hubSpecialTokens(ctx, model)
	}
	if err != nil {
		return nil, &InferenceError{Op: "load", Model: model, Err: err}
	}
	mask, err := special.MaskToken()
	if err != nil {
		return nil, &InferenceError{Op: "load", Model: model, Err: err}
	}

	var p Pipeline = &remote{
		name:      name,
		model:     model,
		mask:      mask,
		endpoint:  l.endpoint(),
		token:     l.Token,
		userAgent: version.UserAgent(),
		client:    l.httpClient(),
	}
	if l.CacheTTL > 0 {
		p = Cached(p, l.CacheTTL)
	}
	log.Debug("pipeline loaded", "model", model, "mask_token", mask)
	return p, nil
}

func (l *Loader) hubSpecialTokens(ctx context.Context, model string) (tokenizer.SpecialTokens, error) {
	h := l.Hub
	if h == nil {
		h = hub.New()
	}
	files := make(map[string][]byte, len(tokenizer.SpecialTokenFiles))
	for _, name := range tokenizer.SpecialTokenFiles {
		data, err := h.ReadFile(ctx, model, hub.DefaultRevision, name)
		if errors.Is(err, hub.ErrNotFound) {
			continue
		}
		if err != nil {
			return tokenizer.SpecialTokens{}, fmt.Errorf("fetch %s: %w", name, err)
		}
		files[name] = data
		// tokenizer_config.json almost always names the mask token; skip the
		// larger files when it does.
		if st, err := tokenizer.ParseSpecialTokensBytes(files[tokenizer.TokenizerConfigJSON], files[tokenizer.SpecialTokensMapJSON], nil); err == nil {
			return st, nil
		}
	}
	return tokenizer.ParseSpecialTokensBytes(
		files[tokenizer.TokenizerConfigJSON],
		files[tokenizer.SpecialTokensMapJSON],
		files[tokenizer.TokenizerJSON],
	)
}

func (l *Loader) endpoint() string {
	if e := strings.TrimRight(strings.TrimSpace(l.Endpoint), "/"); e != "" {
		return e
	}
	return DefaultEndpoint
}

func (l *Loader) httpClient() *http.Client {
	if l.HTTPClient != nil {
		return l.HTTPClient
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

func (l *Loader) log(ctx context.Context) logger.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return logger.FromContext(ctx)
}
