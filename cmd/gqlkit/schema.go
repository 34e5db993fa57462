package main

// schema.go has the schema command which prints the schema with the generated connection types

import (
	"fmt"

	"github.com/andrewwphillips/gqlkit"
	"github.com/spf13/cobra"
)

func newSchemaCmd(settings func() (*config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "prints the schema including connection types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings()
			if err != nil {
				return err
			}
			sdl, err := cfg.readSchema()
			if err != nil {
				return err
			}
			s, err := gqlkit.New(sdl...).Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), s)
			return err
		},
	}
}
