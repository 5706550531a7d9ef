// Package fillmask implements the "hf-fill-mask" field type: seed templates with a
// placeholder are sent through a mask-fill pipeline and one proposed completion is
// returned per iteration.
package fillmask

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/logger"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

const (
	TypeName           = "hf-fill-mask"
	DefaultPlaceholder = "__MASK__"
	DefaultPipeline    = pipeline.DefaultTask
)

// PipelineLoader loads the pipeline a supplier sends its seeds to.
type PipelineLoader interface {
	Load(ctx context.Context, name, modelDir string) (pipeline.Pipeline, error)
}

// Options configures a Supplier.
type Options struct {
	// Placeholder is the literal substring replaced in every seed.
	Placeholder string
	// PipelineName is a task name or model id.
	PipelineName string
	// ModelDir loads the pipeline from a local directory when ModelDirIsValid.
	ModelDir string
	// TokenOnly returns the filled token instead of the full sequence.
	TokenOnly bool
	// Seed fixes candidate selection; nil seeds from the clock.
	Seed *int64
}

func (o *Options) defaults() {
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	if strings.TrimSpace(o.PipelineName) == "" {
		o.PipelineName = DefaultPipeline
	}
}

// Supplier fills the mask in each seed produced by the wrapped supplier.
type Supplier struct {
	wrapped     datagen.Supplier
	pipe        pipeline.Pipeline
	placeholder string
	maskToken   string
	tokenOnly   bool

	mu  sync.Mutex
	rng *rand.Rand
}

// New loads the pipeline eagerly and returns a ready Supplier.
func New(ctx context.Context, wrapped datagen.Supplier, loader PipelineLoader, opts Options) (*Supplier, error) {
	opts.defaults()
	p, err := loader.Load(ctx, opts.PipelineName, opts.ModelDir)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("pipeline ready", "pipeline", opts.PipelineName, "model", p.Model())
	return NewWithPipeline(wrapped, p, opts), nil
}

// NewWithPipeline builds a Supplier around an already loaded pipeline.
func NewWithPipeline(wrapped datagen.Supplier, p pipeline.Pipeline, opts Options) *Supplier {
	opts.defaults()
	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	return &Supplier{
		wrapped:     wrapped,
		pipe:        p,
		placeholder: opts.Placeholder,
		maskToken:   p.MaskToken(),
		tokenOnly:   opts.TokenOnly,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Pipeline returns the loaded pipeline.
func (s *Supplier) Pipeline() pipeline.Pipeline { return s.pipe }

// Next pulls a seed, substitutes the mask token for every placeholder, runs the
// pipeline and returns one uniformly chosen candidate.
func (s *Supplier) Next(ctx context.Context, iteration int) (any, error) {
	raw, err := s.wrapped.Next(ctx, iteration)
	if err != nil {
		return nil, err
	}
	seed := datagen.Stringify(raw)
	masked, err := s.Mask(seed)
	if err != nil {
		return nil, err
	}

	cands, err := s.pipe.Fill(ctx, masked)
	if err != nil {
		return nil, err
	}
	c, err := s.pick(cands)
	if err != nil {
		return nil, err
	}
	if s.tokenOnly {
		return c.TokenStr, nil
	}
	return c.Sequence, nil
}

// Mask replaces every placeholder in seed with the pipeline's mask token. A seed
// without the placeholder is a configuration error.
func (s *Supplier) Mask(seed string) (string, error) {
	if !strings.Contains(seed, s.placeholder) {
		return "", datagen.Configurationf("mask token placeholder %s not found in generated data: %q", s.placeholder, seed)
	}
	return strings.ReplaceAll(seed, s.placeholder, s.maskToken), nil
}

func (s *Supplier) pick(cands []pipeline.Candidate) (pipeline.Candidate, error) {
	if len(cands) == 0 {
		return pipeline.Candidate{}, &pipeline.InferenceError{
			Op:    "sample",
			Model: s.pipe.Model(),
			Err:   pipeline.ErrEmptyResult,
		}
	}
	s.mu.Lock()
	idx := s.rng.Intn(len(cands))
	s.mu.Unlock()
	return cands[idx], nil
}
