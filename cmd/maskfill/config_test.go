package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/maskfill/internal/datagen"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "data_dir: /models/roberta\nendpoint: http://localhost:8000\ncache_ttl: 5m\nserver_address: 0.0.0.0:9000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DataDir != "/models/roberta" || cfg.Endpoint != "http://localhost:8000" || cfg.CacheTTL != "5m" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	cfg, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil || cfg != (Config{}) {
		t.Fatalf("missing file: got %+v, %v", cfg, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("cache_ttl: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(bad); err == nil || !strings.Contains(err.Error(), "cache_ttl") {
		t.Fatalf("expected cache_ttl error, got %v", err)
	}
}

func TestApplySeed(t *testing.T) {
	t.Parallel()

	doc, err := datagen.ParseDocument([]byte(`{
		"a": {"type": "hf-fill-mask", "seed-ref": "s"},
		"b": {"type": "values", "data": [1, 2], "config": {"seed": 3}},
		"c": "literal",
		"refs": {"s": {"type": "values", "data": ["x __MASK__"]}}
	}`), datagen.FormatJSON)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	applySeed(doc, 42)

	seedOf := func(raw any) any {
		spec, _ := raw.(map[string]any)
		cfg, _ := spec["config"].(map[string]any)
		return cfg["seed"]
	}
	if got := seedOf(doc.Fields[0].Spec); got != int64(42) {
		t.Fatalf("field a seed: got %v", got)
	}
	if got := seedOf(doc.Fields[1].Spec); got != float64(3) {
		t.Fatalf("field b seed should be kept: got %v", got)
	}
	if got, ok := doc.Fields[2].Spec.(string); !ok || got != "literal" {
		t.Fatalf("literal field changed: %#v", doc.Fields[2].Spec)
	}
	if got := seedOf(doc.Refs["s"]); got != int64(42) {
		t.Fatalf("ref seed: got %v", got)
	}
}
