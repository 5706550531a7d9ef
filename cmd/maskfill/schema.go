package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

func schemaCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print a field type's JSON schema, or list the field types",
		ArgsUsage: "[type]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reg, err := newRegistry(stubLoader{})
			if err != nil {
				return err
			}
			name := cmd.Args().First()
			if name == "" {
				for _, t := range reg.Types() {
					_, _ = fmt.Fprintln(stdout, t)
				}
				return nil
			}
			schema, ok := reg.Schema(name)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: no schema for type %q", name), 1)
			}
			b, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "%s\n", b)
			return nil
		},
	}
}
