package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// ManifestFile is written by the model fetcher next to the model files.
const ManifestFile = "maskfill.json"

// Manifest records where a fetched model directory came from.
type Manifest struct {
	Task     string   `json:"task,omitempty"`
	Model    string   `json:"model"`
	Revision string   `json:"revision,omitempty"`
	SHA      string   `json:"sha,omitempty"`
	Files    []string `json:"files"`
}

// WriteManifest writes m into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644)
}

// ReadManifest reads dir's manifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if strings.TrimSpace(m.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", ManifestFile)
	}
	return &m, nil
}

// modelFromDir identifies the model stored in dir: the fetcher manifest first, then
// the "_name_or_path" recorded in config.json.
func modelFromDir(dir string) (string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("model dir is not a directory: %s", dir)
	}

	m, err := ReadManifest(dir)
	if err == nil {
		return m.Model, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return "", fmt.Errorf("no %s or config.json in %s: %w", ManifestFile, dir, err)
	}
	var cfg struct {
		NameOrPath string `json:"_name_or_path"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", fmt.Errorf("parse config.json: %w", err)
	}
	if strings.TrimSpace(cfg.NameOrPath) == "" {
		return "", fmt.Errorf("config.json in %s does not name its model", dir)
	}
	return cfg.NameOrPath, nil
}
