package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/maskfill/internal/api"
	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/logger"
)

const (
	outputJSON  = "json"
	outputJSONL = "jsonl"
	outputYAML  = "yaml"
)

func generateCmd(stdout io.Writer) *cli.Command {
	var (
		specPath   string
		specFormat string
		count      int64
		format     string
		seed       int64
		modelsPath string
		stubTokens []string
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate records from a spec file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "spec",
				Aliases:     []string{"s"},
				Usage:       "spec file (json, yaml or toml); - reads stdin",
				Required:    true,
				Destination: &specPath,
			},
			&cli.StringFlag{
				Name:        "spec-format",
				Usage:       "spec encoding when it cannot be told from the file name",
				Destination: &specFormat,
			},
			&cli.Int64Flag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "number of records",
				Value:       10,
				Destination: &count,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (json, jsonl, yaml)",
				Value:       outputJSON,
				Destination: &format,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed for fields that sample and do not set one",
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "models-path",
				Usage:       "directory of fetched models; bare model-dir names resolve here",
				Sources:     cli.EnvVars("MASKFILL_MODELS_DIR"),
				Destination: &modelsPath,
			},
			&cli.StringSliceFlag{
				Name:        "stub",
				Usage:       "use a local pipeline proposing these tokens instead of a model",
				Destination: &stubTokens,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			if count < 1 {
				return cli.Exit("error: --count must be positive", 1)
			}
			switch format {
			case outputJSON, outputJSONL, outputYAML:
			default:
				return cli.Exit(fmt.Sprintf("error: unknown output format %q", format), 1)
			}
			if modelsPath == "" {
				modelsPath = loadedConfig.ModelsDir
			}

			doc, err := readSpec(specPath, specFormat)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if cmd.IsSet("seed") {
				applySeed(doc, seed)
			}

			provider := newPipelineProvider(api.PipelineProviderConfig{ModelsPath: modelsPath}, stubTokens)
			defer func() { _ = provider.Close() }()
			reg, err := newRegistry(provider)
			if err != nil {
				return err
			}
			loader := datagen.NewLoader(reg, doc.Refs, dataDir)
			gen, err := datagen.NewGenerator(ctx, doc, loader)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Debug("generating", "fields", len(doc.Fields), "count", count)

			w := bufio.NewWriter(stdout)
			if err := writeRecords(ctx, w, gen, int(count), format); err != nil {
				_ = w.Flush()
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return w.Flush()
		},
	}
}

func readSpec(path, format string) (*datagen.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	f := datagen.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = datagen.FormatFromPath(path)
	}
	return datagen.ParseDocument(data, f)
}

// applySeed sets seed on every typed field and ref spec that has none.
func applySeed(doc *datagen.Document, seed int64) {
	set := func(raw any) {
		spec, ok := raw.(map[string]any)
		if !ok {
			return
		}
		if _, typed := spec["type"]; !typed {
			return
		}
		cfg, ok := spec["config"].(map[string]any)
		if !ok {
			cfg = map[string]any{}
			spec["config"] = cfg
		}
		if _, exists := cfg["seed"]; !exists {
			cfg["seed"] = seed
		}
	}
	for _, f := range doc.Fields {
		set(f.Spec)
	}
	for _, r := range doc.Refs {
		set(r)
	}
}

func writeRecords(ctx context.Context, w io.Writer, gen *datagen.Generator, n int, format string) error {
	switch format {
	case outputJSONL:
		return gen.Generate(ctx, n, func(r datagen.Record) error {
			b, err := json.Marshal(r)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", b)
			return err
		})
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err := gen.Generate(ctx, n, func(r datagen.Record) error {
			return enc.Encode(r)
		})
		if err != nil {
			return err
		}
		return enc.Close()
	default:
		records := make([]datagen.Record, 0, n)
		err := gen.Generate(ctx, n, func(r datagen.Record) error {
			records = append(records, r)
			return nil
		})
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
}
