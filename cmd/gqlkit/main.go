// Command gqlkit serves a GraphQL schema whose types are backed by in-memory repositories loaded from YAML files.
//
// Usage:
//
//	gqlkit serve --config gqlkit.yaml
//	gqlkit schema --schema schema.graphql
//
// Settings come from flags, GQLKIT_* environment variables (eg GQLKIT_ADDR) or the config file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
