// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2a-server serves an echo agent over the A2A JSON-RPC protocol.
//
// Usage:
//
//	a2a-server serve --config a2a.yaml
//	a2a-server serve --store sqlite --dsn file:tasks.db
//	a2a-server version
package main

import (
	"fmt"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the A2A server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config  string   `short:"c" help:"Path to the YAML config file." type:"path"`
	EnvFile []string `name:"env-file" help:"Dotenv files loaded before the config is read." default:".env"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("a2a-server version %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("a2a-server"),
		kong.Description("A2A task execution server."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
