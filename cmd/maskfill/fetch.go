package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/maskfill/internal/fetch"
	"github.com/samcharles93/maskfill/internal/logger"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

func fetchCmd() *cli.Command {
	var revision, cacheDir string

	return &cli.Command{
		Name:      "fetch",
		Usage:     "Download a fill-mask model for offline use as model-dir",
		ArgsUsage: "<output_dir> [model_name]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "revision",
				Usage:       "Hub revision (branch, tag or commit)",
				Value:       "main",
				Destination: &revision,
			},
			&cli.StringFlag{
				Name:        "cache-dir",
				Usage:       "Hugging Face download cache (default ~/.cache/huggingface/hub)",
				Sources:     cli.EnvVars("HF_HUB_CACHE"),
				Destination: &cacheDir,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outDir := strings.TrimSpace(cmd.Args().Get(0))
			if outDir == "" {
				return cli.Exit("Please specify output directory for model\nusage: maskfill fetch <output_dir> [model_name]", 1)
			}
			name := cmd.Args().Get(1)
			if name == "" {
				name = pipeline.DefaultTask
			}

			f := &fetch.Fetcher{
				Hub:      newHubClient(),
				Revision: revision,
				CacheDir: cacheDir,
				Logger:   logger.FromContext(ctx),
			}
			m, err := f.Fetch(ctx, outDir, name)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "saved %s (%d files) to %s\n", m.Model, len(m.Files), outDir)
			return nil
		},
	}
}
