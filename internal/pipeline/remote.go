package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultEndpoint serves the Hugging Face inference wire format:
// POST <endpoint>/models/<model> {"inputs": "..."}.
const DefaultEndpoint = "https://router.huggingface.co/hf-inference"

type remote struct {
	name      string
	model     string
	mask      string
	endpoint  string
	token     string
	userAgent string
	client    *http.Client
}

func (r *remote) Name() string      { return r.name }
func (r *remote) Model() string     { return r.model }
func (r *remote) MaskToken() string { return r.mask }

type fillRequest struct {
	Inputs  string      `json:"inputs"`
	Options fillOptions `json:"options"`
}

type fillOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type apiError struct {
	Error string `json:"error"`
}

func (r *remote) Fill(ctx context.Context, text string) ([]Candidate, error) {
	data, err := json.Marshal(fillRequest{Inputs: text, Options: fillOptions{WaitForModel: true}})
	if err != nil {
		return nil, r.fail(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url(), bytes.NewReader(data))
	if err != nil {
		return nil, r.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, r.fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.fail(err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
			return nil, r.fail(fmt.Errorf("API error (status %d): %s", resp.StatusCode, ae.Error))
		}
		return nil, r.fail(fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	cands, err := decodeCandidates(body)
	if err != nil {
		return nil, r.fail(err)
	}
	return cands, nil
}

func (r *remote) url() string {
	parts := strings.Split(r.model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return r.endpoint + "/models/" + strings.Join(parts, "/")
}

func (r *remote) fail(err error) error {
	return &InferenceError{Op: "fill", Model: r.model, Err: err}
}

// decodeCandidates accepts a flat candidate list (one mask) or a list of lists
// (one list per mask, flattened in mask order).
func decodeCandidates(body []byte) ([]Candidate, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, truncate(body, 256))
	}
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var group []Candidate
			if err := json.Unmarshal(trimmed, &group); err != nil {
				return nil, fmt.Errorf("failed to parse candidates: %w", err)
			}
			out = append(out, group...)
			continue
		}
		var c Candidate
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("failed to parse candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
