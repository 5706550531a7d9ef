package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samcharles93/maskfill/internal/fillmask"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

const envModelsDir = "MASKFILL_MODELS_DIR"

const (
	DefaultPipelineCapacity = 16
	DefaultPipelineIdleTTL  = 30 * time.Minute
)

// PipelineProviderConfig configures a CachedPipelineProvider.
type PipelineProviderConfig struct {
	// ModelsPath holds fetched model directories; a bare model-dir name is looked
	// up there.
	ModelsPath string
	Loader     fillmask.PipelineLoader
	// Capacity bounds the loaded pipelines; the least recently used one is
	// closed when a new one would exceed it.
	Capacity uint64
	// IdleTTL closes pipelines no request has used for that long.
	IdleTTL time.Duration
}

// CachedPipelineProvider loads each pipeline once and shares it between
// requests.
type CachedPipelineProvider struct {
	cfg          PipelineProviderConfig
	cache        *ttlcache.Cache[string, pipeline.Pipeline]
	stopEviction func()
}

func NewCachedPipelineProvider(cfg PipelineProviderConfig) *CachedPipelineProvider {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultPipelineCapacity
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultPipelineIdleTTL
	}
	c := ttlcache.New[string, pipeline.Pipeline](
		ttlcache.WithTTL[string, pipeline.Pipeline](cfg.IdleTTL),
		ttlcache.WithCapacity[string, pipeline.Pipeline](cfg.Capacity),
	)
	stop := c.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, pipeline.Pipeline]) {
		closePipeline(item.Value())
	})
	go c.Start()
	return &CachedPipelineProvider{cfg: cfg, cache: c, stopEviction: stop}
}

// Load implements fillmask.PipelineLoader.
func (p *CachedPipelineProvider) Load(ctx context.Context, name, modelDir string) (pipeline.Pipeline, error) {
	if p.cfg.Loader == nil {
		return nil, fmt.Errorf("pipeline loader not configured")
	}
	modelDir = p.resolveModelDir(modelDir)
	key := strings.TrimSpace(name) + "\x00" + modelDir

	if item := p.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	loaded, err := p.cfg.Loader.Load(ctx, name, modelDir)
	if err != nil {
		return nil, err
	}
	// Overwriting an expired entry skips eviction, so purge expired ones first.
	p.cache.DeleteExpired()
	item, found := p.cache.GetOrSet(key, loaded)
	if found {
		// Another request loaded the same pipeline first.
		closePipeline(loaded)
	}
	return item.Value(), nil
}

// Loaded reports how many pipelines are currently held.
func (p *CachedPipelineProvider) Loaded() int { return p.cache.Len() }

// ListModels returns the fetched model directories under the models path.
func (p *CachedPipelineProvider) ListModels() ([]string, error) {
	dir := p.modelsDir()
	if dir == "" {
		return nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		if fileExists(filepath.Join(dir, e.Name(), pipeline.ManifestFile)) {
			models = append(models, e.Name())
		}
	}
	sort.Strings(models)
	return models, nil
}

// Close releases every cached pipeline and waits for them to close.
func (p *CachedPipelineProvider) Close() error {
	p.cache.DeleteAll()
	p.cache.Stop()
	p.stopEviction()
	return nil
}

func (p *CachedPipelineProvider) resolveModelDir(modelDir string) string {
	if !pipeline.ModelDirIsValid(modelDir) {
		return modelDir
	}
	modelDir = strings.TrimSpace(modelDir)
	if strings.ContainsRune(modelDir, filepath.Separator) {
		return filepath.Clean(modelDir)
	}
	if dir := p.modelsDir(); dir != "" {
		if cand := filepath.Join(dir, modelDir); fileExists(cand) {
			return cand
		}
	}
	return modelDir
}

func (p *CachedPipelineProvider) modelsDir() string {
	if strings.TrimSpace(p.cfg.ModelsPath) != "" {
		return strings.TrimSpace(p.cfg.ModelsPath)
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

func closePipeline(p pipeline.Pipeline) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
