package main

// root.go builds the command tree

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd creates the gqlkit command and its sub-commands, which share the settings
func newRootCmd() *cobra.Command {
	v := newViper()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "gqlkit",
		Short:         "serves a GraphQL schema backed by in-memory repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringSlice("schema", nil, "schema (SDL) files")
	_ = v.BindPFlag("schema", rootCmd.PersistentFlags().Lookup("schema"))

	settings := func() (*config, error) {
		return load(v, configFile)
	}
	rootCmd.AddCommand(newServeCmd(v, settings), newSchemaCmd(settings))
	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}
