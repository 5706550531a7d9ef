package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/maskfill/internal/api"
	"github.com/samcharles93/maskfill/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		batchTTL    time.Duration
		maxCount    int64
		modelsPath  string
		pipelines   uint64
		idleTTL     time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.DurationFlag{
				Name:        "batch-ttl",
				Usage:       "how long generated batches can be fetched again",
				Value:       api.DefaultBatchTTL,
				Destination: &batchTTL,
			},
			&cli.Int64Flag{
				Name:        "max-count",
				Usage:       "largest count accepted per request",
				Value:       api.MaxCount,
				Destination: &maxCount,
			},
			&cli.StringFlag{
				Name:        "models-path",
				Usage:       "directory of fetched models",
				Sources:     cli.EnvVars("MASKFILL_MODELS_DIR"),
				Destination: &modelsPath,
			},
			&cli.Uint64Flag{
				Name:        "max-pipelines",
				Usage:       "pipelines kept loaded at once; the least recently used is closed first",
				Value:       api.DefaultPipelineCapacity,
				Destination: &pipelines,
			},
			&cli.DurationFlag{
				Name:        "pipeline-idle-ttl",
				Usage:       "close pipelines unused for this long",
				Value:       api.DefaultPipelineIdleTTL,
				Destination: &idleTTL,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, loadedConfig, &addr, &modelsPath)

			provider := newPipelineProvider(api.PipelineProviderConfig{
				ModelsPath: modelsPath,
				Capacity:   pipelines,
				IdleTTL:    idleTTL,
			}, nil)
			defer func() { _ = provider.Close() }()
			reg, err := newRegistry(provider)
			if err != nil {
				return err
			}
			store := api.NewBatchStore(batchTTL)
			defer store.Close()

			server := api.NewServer(api.Config{
				Registry: reg,
				Store:    store,
				Datadir:  dataDir,
				Models:   provider,
				MaxCount: int(maxCount),
				Logger:   log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "endpoint", endpoint)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
