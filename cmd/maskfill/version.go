package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/maskfill/internal/version"
)

func versionCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, _ = fmt.Fprintf(stdout, "version: %s\n", version.Resolve())
			if version.Commit != "" {
				_, _ = fmt.Fprintf(stdout, "commit:  %s\n", version.Commit)
			}
			_, _ = fmt.Fprintf(stdout, "go:      %s\n", runtime.Version())
			return nil
		},
	}
}
