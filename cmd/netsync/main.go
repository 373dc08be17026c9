// Package main provides the entry point for the netsync CLI tool.
package main

import (
	"github.com/netbridge/netsync/cmd/netsync/cmd"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
