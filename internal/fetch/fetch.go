// Package fetch downloads a fill-mask model from the Hub into a local directory
// that can later be used as a supplier's model-dir.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ghub "github.com/gomlx/go-huggingface/hub"

	"github.com/samcharles93/maskfill/internal/hub"
	"github.com/samcharles93/maskfill/internal/logger"
	"github.com/samcharles93/maskfill/internal/pipeline"
	"github.com/samcharles93/maskfill/internal/safetensors"
)

var (
	ErrNoWeights     = errors.New("repository has no supported weights")
	ErrNotEnoughDisk = errors.New("not enough free disk space")
	ErrMismatch      = errors.New("downloaded file does not match hub listing")
)

// metadataFiles are the config and tokenizer files a pipeline needs next to its weights.
var metadataFiles = map[string]bool{
	"config.json":             true,
	"generation_config.json":  true,
	"tokenizer.json":          true,
	"tokenizer_config.json":   true,
	"special_tokens_map.json": true,
	"added_tokens.json":       true,
	"vocab.json":              true,
	"vocab.txt":               true,
	"merges.txt":              true,
	"sentencepiece.bpe.model": true,
	"spiece.model":            true,
}

// Fetcher writes models into directories. Files are downloaded into the shared
// Hugging Face cache at CacheDir and copied from there.
type Fetcher struct {
	Hub      *hub.Client
	Revision string
	CacheDir string
	Logger   logger.Logger
}

// Fetch resolves name (a task or a model id, default "fill-mask"), downloads its
// files into outDir and writes the manifest.
func (f *Fetcher) Fetch(ctx context.Context, outDir, name string) (*pipeline.Manifest, error) {
	log := f.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	client := f.Hub
	if client == nil {
		client = hub.New()
	}

	if strings.TrimSpace(outDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	model, isTask := pipeline.ResolveModel(name)
	task := ""
	if isTask {
		task = strings.TrimSpace(name)
		if task == "" {
			task = pipeline.DefaultTask
		}
	}
	log.Info("resolving model", "name", name, "model", model, "revision", f.revision())

	info, err := client.ModelInfo(ctx, model, f.revision())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", model, err)
	}
	files, err := SelectFiles(info.Siblings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", model, err)
	}

	var total int64
	for _, file := range files {
		total += file.ExpectedSize()
	}
	if free, ok := freeSpace(outDir); ok && total > 0 && uint64(total) > free {
		return nil, fmt.Errorf("%s needs %d bytes, %d available: %w", model, total, free, ErrNotEnoughDisk)
	}

	revision := f.revision()
	if info.SHA != "" {
		revision = info.SHA
	}
	repo := ghub.New(model).
		WithEndpoint(client.BaseURL()).
		WithAuth(client.Token()).
		WithRevision(revision).
		WithCacheDir(f.cacheDir())
	repo.Verbosity = 0

	names := make([]string, 0, len(files))
	for _, file := range files {
		// The hub download takes no context; cancellation is checked between files.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cached, err := repo.DownloadFile(file.Name)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", file.Name, err)
		}
		dst := filepath.Join(outDir, filepath.FromSlash(file.Name))
		n, err := install(cached, dst, file)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(file.Name, ".safetensors") {
			if _, err := safetensors.Verify(dst); err != nil {
				return nil, err
			}
		}
		log.Info("downloaded", "file", file.Name, "bytes", n)
		names = append(names, file.Name)
	}

	m := &pipeline.Manifest{
		Task:     task,
		Model:    model,
		Revision: f.revision(),
		SHA:      info.SHA,
		Files:    names,
	}
	if err := pipeline.WriteManifest(outDir, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	log.Info("model saved", "model", model, "dir", outDir, "files", len(names))
	return m, nil
}

func (f *Fetcher) cacheDir() string {
	if d := strings.TrimSpace(f.CacheDir); d != "" {
		return d
	}
	return ghub.DefaultCacheDir()
}

// install copies a cached snapshot file to dst through a temporary ".part" file,
// checking the size and, for LFS files, the SHA-256 digest the hub listed.
func install(src, dst string, f hub.File) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	part := dst + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	cleanup := func(err error) (int64, error) {
		_ = out.Close()
		_ = os.Remove(part)
		return 0, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return cleanup(fmt.Errorf("copy %s: %w", f.Name, err))
	}
	if want := f.ExpectedSize(); want > 0 && n != want {
		return cleanup(fmt.Errorf("%s: %w: got %d bytes want %d", f.Name, ErrMismatch, n, want))
	}
	if f.LFS != nil && f.LFS.SHA256 != "" {
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, f.LFS.SHA256) {
			return cleanup(fmt.Errorf("%s: %w: sha256 %s want %s", f.Name, ErrMismatch, got, f.LFS.SHA256))
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	return n, nil
}

func (f *Fetcher) revision() string {
	if r := strings.TrimSpace(f.Revision); r != "" {
		return r
	}
	return hub.DefaultRevision
}

// SelectFiles keeps the metadata files and one weights format, safetensors when
// the repository has it and pytorch_model.bin otherwise. The result is sorted by name.
func SelectFiles(siblings []hub.File) ([]hub.File, error) {
	var meta, safe, torch []hub.File
	for _, s := range siblings {
		// Root level only: subfolders hold onnx, tflite and other exports.
		if strings.Contains(s.Name, "/") {
			continue
		}
		base := path.Base(s.Name)
		switch {
		case metadataFiles[base]:
			meta = append(meta, s)
		case strings.HasSuffix(base, ".safetensors"),
			base == "model.safetensors.index.json":
			safe = append(safe, s)
		case strings.HasPrefix(base, "pytorch_model") &&
			(strings.HasSuffix(base, ".bin") || base == "pytorch_model.bin.index.json"):
			torch = append(torch, s)
		}
	}

	weights := safe
	if !hasWeights(weights) {
		weights = torch
	}
	if !hasWeights(weights) {
		return nil, ErrNoWeights
	}
	out := append(meta, weights...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasWeights(files []hub.File) bool {
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".json") {
			return true
		}
	}
	return false
}
