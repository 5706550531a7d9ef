package pipeline

import (
	"context"
	"strings"
)

// Func is a Pipeline backed by a function. It serves offline dry runs and tests.
type Func struct {
	PipelineName string
	ModelName    string
	Mask         string
	Fn           func(ctx context.Context, text string) ([]Candidate, error)
}

func (f *Func) Name() string      { return f.PipelineName }
func (f *Func) Model() string     { return f.ModelName }
func (f *Func) MaskToken() string { return f.Mask }

func (f *Func) Fill(ctx context.Context, text string) ([]Candidate, error) {
	return f.Fn(ctx, text)
}

// Static returns the same candidates for every input.
func Static(mask string, cands ...Candidate) *Func {
	return &Func{
		PipelineName: DefaultTask,
		ModelName:    "static",
		Mask:         mask,
		Fn: func(context.Context, string) ([]Candidate, error) {
			return append([]Candidate(nil), cands...), nil
		},
	}
}

// Filler proposes each token in turn, substituting it for every mask in the input.
func Filler(mask string, tokens ...string) *Func {
	return &Func{
		PipelineName: DefaultTask,
		ModelName:    "filler",
		Mask:         mask,
		Fn: func(_ context.Context, text string) ([]Candidate, error) {
			out := make([]Candidate, 0, len(tokens))
			for i, tok := range tokens {
				out = append(out, Candidate{
					Sequence: strings.ReplaceAll(text, mask, tok),
					TokenStr: tok,
					Token:    i,
					Score:    1 / float64(len(tokens)),
				})
			}
			return out, nil
		},
	}
}
