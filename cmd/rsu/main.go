// Package main is the single-binary entrypoint for rsu, the roadside unit
// beacon ingestion service.
package main

import "github.com/roadside-lab/rsu/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
