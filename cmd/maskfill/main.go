package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/maskfill/internal/logger"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "maskfill",
		Usage:     "Mock data generation with masked language models",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     append(loggingFlags(), inferenceFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyGlobalConfig(cmd, cfg)
			loadedConfig = cfg

			level := logLevel
			if debug {
				level = "debug"
			}
			log, err := logger.Setup(stderr, logFormat, level)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		// Exit codes are returned from run so tests can drive the binary in-process.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			fetchCmd(),
			generateCmd(stdout),
			serveCmd(),
			schemaCmd(stdout),
			versionCmd(stdout),
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return 0
	}
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			_, _ = fmt.Fprintln(stderr, msg)
		}
		return exit.ExitCode()
	}
	_, _ = fmt.Fprintln(stderr, err)
	return 1
}
