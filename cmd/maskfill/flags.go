package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/maskfill/internal/hub"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	endpoint string
	hubURL   string
	token    string
	cacheTTL time.Duration
	dataDir  string

	loadedConfig Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       configPath(),
			Sources:     cli.EnvVars("MASKFILL_CONFIG"),
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func inferenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "endpoint",
			Usage:       "fill-mask inference endpoint",
			Value:       pipeline.DefaultEndpoint,
			Sources:     cli.EnvVars("MASKFILL_ENDPOINT"),
			Destination: &endpoint,
		},
		&cli.StringFlag{
			Name:        "hub-url",
			Usage:       "Hugging Face Hub base URL",
			Value:       hub.DefaultBaseURL,
			Sources:     cli.EnvVars("HF_ENDPOINT"),
			Destination: &hubURL,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "Hugging Face access token",
			Sources:     cli.EnvVars("HF_TOKEN"),
			Destination: &token,
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "how long fill-mask results are reused (0 disables the cache)",
			Value:       10 * time.Minute,
			Destination: &cacheTTL,
		},
		&cli.StringFlag{
			Name:        "datadir",
			Usage:       "default model directory for fields without model-dir",
			Sources:     cli.EnvVars("MASKFILL_DATA_DIR"),
			Destination: &dataDir,
		},
	}
}
