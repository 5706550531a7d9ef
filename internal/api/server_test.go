package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/fillmask"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

type stubLoader struct {
	mu    sync.Mutex
	loads []string
	err   error
}

func (l *stubLoader) Load(_ context.Context, name, modelDir string) (pipeline.Pipeline, error) {
	l.mu.Lock()
	l.loads = append(l.loads, name+"|"+modelDir)
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return pipeline.Filler("<mask>", "margherita"), nil
}

func (l *stubLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

type closablePipeline struct {
	pipeline.Pipeline
	closed chan struct{}
}

func (p *closablePipeline) Close() error {
	close(p.closed)
	return nil
}

// closingLoader hands out pipelines that report when they are closed.
type closingLoader struct {
	mu    sync.Mutex
	loads int
	pipes map[string]*closablePipeline
}

func (l *closingLoader) Load(_ context.Context, name, _ string) (pipeline.Pipeline, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	p := &closablePipeline{Pipeline: pipeline.Filler("<mask>", name), closed: make(chan struct{})}
	if l.pipes == nil {
		l.pipes = make(map[string]*closablePipeline)
	}
	l.pipes[name] = p
	return p, nil
}

func (l *closingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func (l *closingLoader) pipe(name string) *closablePipeline {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pipes[name]
}

func waitClosed(t *testing.T, p *closablePipeline, name string) {
	t.Helper()
	select {
	case <-p.closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline %s was not closed", name)
	}
}

func isClosed(p *closablePipeline) bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func newTestEcho(t *testing.T, loader fillmask.PipelineLoader) *echo.Echo {
	t.Helper()
	reg := datagen.NewRegistry()
	if err := fillmask.Register(reg, loader); err != nil {
		t.Fatalf("register: %v", err)
	}
	store := NewBatchStore(DefaultBatchTTL)
	t.Cleanup(store.Close)
	server := NewServer(Config{Registry: reg, Store: store, Datadir: "[]", MaxCount: 100})
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error ResponseError `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

const pizzaSpec = `{
	"pizza": {"type": "hf-fill-mask", "seed-ref": "seeds", "config": {"token-only": true}},
	"n": [1, 2],
	"refs": {"seeds": ["I like __MASK__ pizza"]}
}`

func TestGenerateGetDeleteBatchLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, &stubLoader{})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"spec":`+pizzaSpec+`,"count":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if got, want := rec.Body.String(), `"records":[{"pizza":"margherita","n":1},{"pizza":"margherita","n":2}]`; !strings.Contains(got, want) {
		t.Fatalf("records not in field order: %s", got)
	}

	var batch struct {
		ID     string `json:"id"`
		Object string `json:"object"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if !strings.HasPrefix(batch.ID, "gen_") || batch.Object != "batch" || batch.Count != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/batches/"+batch.ID, "")
	if getRec.Code != http.StatusOK || !strings.Contains(getRec.Body.String(), batch.ID) {
		t.Fatalf("get batch: %d %s", getRec.Code, getRec.Body.String())
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/batches/"+batch.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete batch: %d %s", delRec.Code, delRec.Body.String())
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/batches/"+batch.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted batch: got %d want 404", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodDelete, "/v1/batches/"+batch.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete twice: got %d want 404", rec.Code)
	}
}

func TestGenerateDefaultsToOneRecord(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, &stubLoader{})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"spec":{"greeting":"hello"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"records":[{"greeting":"hello"}]`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGenerateRequestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		status  int
		errType string
		contain string
	}{
		{"invalid json", `{"spec":`, http.StatusBadRequest, "invalid_request_error", "invalid JSON"},
		{"missing spec", `{"count":1}`, http.StatusBadRequest, "invalid_request_error", "spec is required"},
		{"count too large", `{"spec":{"a":"b"},"count":1000}`, http.StatusBadRequest, "invalid_request_error", "between 1 and 100"},
		{"count zero", `{"spec":{"a":"b"},"count":0}`, http.StatusBadRequest, "invalid_request_error", "between 1 and 100"},
		{"missing seed-ref", `{"spec":{"a":{"type":"hf-fill-mask"}}}`, http.StatusBadRequest, "invalid_request_error", "seed-ref is required field for hf-fill-mask type"},
		{"unknown ref", `{"spec":{"a":{"type":"hf-fill-mask","seed-ref":"nope"}}}`, http.StatusBadRequest, "invalid_request_error", `unknown ref "nope"`},
		{"missing placeholder", `{"spec":{"a":{"type":"hf-fill-mask","seed-ref":"s"},"refs":{"s":["no mask"]}}}`, http.StatusBadRequest, "invalid_request_error", "__MASK__"},
	}

	e := newTestEcho(t, &stubLoader{})
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: status got %d want %d body=%s", tc.name, rec.Code, tc.status, rec.Body.String())
		}
		got := decodeError(t, rec)
		if got.Type != tc.errType || !strings.Contains(got.Message, tc.contain) {
			t.Fatalf("%s: unexpected error %+v", tc.name, got)
		}
	}
}

func TestGenerateInferenceErrorIsBadGateway(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{err: &pipeline.InferenceError{Op: "load", Model: "m", Err: errors.New("boom")}}
	e := newTestEcho(t, loader)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"spec":`+pizzaSpec+`}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d want 502 body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec); got.Type != "inference_error" || !strings.Contains(got.Message, "boom") {
		t.Fatalf("unexpected error: %+v", got)
	}
}

func TestTypesAndSchemas(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, &stubLoader{})

	rec := doJSON(t, e, http.MethodGet, "/v1/types", "")
	var types struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("decode types: %v", err)
	}
	if want := []string{"hf-fill-mask", "ref", "values"}; !reflect.DeepEqual(types.Data, want) {
		t.Fatalf("types: got %v want %v", types.Data, want)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/types/hf-fill-mask/schema", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pattern":"^hf-fill-mask"`) {
		t.Fatalf("schema: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/types/values/schema", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Type != "not_found_error" {
		t.Fatalf("missing schema: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCachedPipelineProviderLoadsOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "roberta"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(dir, "roberta", pipeline.ManifestFile), `{"model":"FacebookAI/roberta-base","files":[]}`)
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(dir, "notes.txt"), "x")

	loader := &stubLoader{}
	provider := NewCachedPipelineProvider(PipelineProviderConfig{ModelsPath: dir, Loader: loader})
	t.Cleanup(func() { _ = provider.Close() })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := provider.Load(ctx, "fill-mask", "roberta"); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if _, err := provider.Load(ctx, "fill-mask", "[]"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("loads: got %d want 2", got)
	}
	loader.mu.Lock()
	first := loader.loads[0]
	loader.mu.Unlock()
	if want := "fill-mask|" + filepath.Join(dir, "roberta"); first != want {
		t.Fatalf("resolved model dir: got %q want %q", first, want)
	}

	models, err := provider.ListModels()
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if want := []string{"roberta"}; !reflect.DeepEqual(models, want) {
		t.Fatalf("ListModels: got %v want %v", models, want)
	}
}

func TestCachedPipelineProviderEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	loader := &closingLoader{}
	provider := NewCachedPipelineProvider(PipelineProviderConfig{Loader: loader, Capacity: 2})
	ctx := context.Background()

	for _, name := range []string{"a", "b", "a", "c"} {
		if _, err := provider.Load(ctx, name, "[]"); err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
	}
	waitClosed(t, loader.pipe("b"), "b")
	if isClosed(loader.pipe("a")) || isClosed(loader.pipe("c")) {
		t.Fatalf("recently used pipelines should stay open")
	}
	if got := provider.Loaded(); got != 2 {
		t.Fatalf("loaded: got %d want 2", got)
	}

	if _, err := provider.Load(ctx, "b", "[]"); err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if got := loader.count(); got != 4 {
		t.Fatalf("loads: got %d want 4", got)
	}

	if err := provider.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if !isClosed(loader.pipe(name)) {
			t.Fatalf("pipeline %s still open after Close", name)
		}
	}
	if got := provider.Loaded(); got != 0 {
		t.Fatalf("loaded after Close: got %d want 0", got)
	}
}

func TestCachedPipelineProviderClosesIdlePipelines(t *testing.T) {
	t.Parallel()

	loader := &closingLoader{}
	provider := NewCachedPipelineProvider(PipelineProviderConfig{Loader: loader, IdleTTL: 20 * time.Millisecond})
	t.Cleanup(func() { _ = provider.Close() })

	if _, err := provider.Load(context.Background(), "fill-mask", "[]"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitClosed(t, loader.pipe("fill-mask"), "fill-mask")
}

func TestListModelsEndpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b-model", "a-model"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
		mustWriteFile(t, filepath.Join(dir, name, pipeline.ManifestFile), fmt.Sprintf(`{"model":%q,"files":[]}`, name))
	}
	provider := NewCachedPipelineProvider(PipelineProviderConfig{ModelsPath: dir, Loader: &stubLoader{}})
	t.Cleanup(func() { _ = provider.Close() })
	server := NewServer(Config{Models: provider})
	e := echo.New()
	server.Register(e)

	rec := doJSON(t, e, http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":["a-model","b-model"]`) {
		t.Fatalf("models: %d %s", rec.Code, rec.Body.String())
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
