// Package pipeline loads mask-fill inference pipelines and calls them.
//
// A pipeline is identified by a task name ("fill-mask") or a Hub model id. Loading
// resolves the model and its tokenizer's mask token; inference itself runs on a
// Hugging Face compatible inference endpoint.
package pipeline

import (
	"context"
	"errors"
	"strings"
)

// DefaultTask is the pipeline used when none is configured.
const DefaultTask = "fill-mask"

// taskDefaults maps task names to the model resolved for them.
var taskDefaults = map[string]string{
	DefaultTask: "distilbert/distilroberta-base",
}

// ResolveModel maps a task name to its default model. Any other name is taken to
// be a model id.
func ResolveModel(name string) (model string, isTask bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTask
	}
	if m, ok := taskDefaults[name]; ok {
		return m, true
	}
	return name, false
}

// Candidate is one completion proposed for a masked position.
type Candidate struct {
	Sequence string  `json:"sequence"`
	TokenStr string  `json:"token_str"`
	Token    int     `json:"token"`
	Score    float64 `json:"score"`
}

// Pipeline fills the mask token in a text.
type Pipeline interface {
	Name() string
	Model() string
	// MaskToken is the tokenizer's literal mask token, e.g. "<mask>" or "[MASK]".
	MaskToken() string
	Fill(ctx context.Context, text string) ([]Candidate, error)
}

var (
	ErrInference   = errors.New("inference error")
	ErrEmptyResult = errors.New("pipeline returned no candidates")
)

// InferenceError reports a failed pipeline load or call. errors.Is(err, ErrInference)
// holds for every InferenceError.
type InferenceError struct {
	Op    string
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	msg := "inference " + e.Op
	if e.Model != "" {
		msg += " " + e.Model
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InferenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInference}
	}
	return []error{ErrInference, e.Err}
}

// ModelDirIsValid reports whether dir names a local model directory. Empty values,
// whitespace and "[]" mean no directory was configured.
func ModelDirIsValid(dir string) bool {
	d := strings.TrimSpace(dir)
	return d != "" && d != "[]"
}
