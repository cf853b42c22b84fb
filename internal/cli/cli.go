// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
)

const (
	appName    = "agentflow"
	appVersion = "0.1.0-alpha"
)

// Execute runs the CLI application
func Execute() error {
	return execute(os.Args[1:], os.Stdout)
}

func execute(args []string, out io.Writer) error {
	if len(args) < 1 {
		return printUsage(out)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "run":
		return runCommand(args)
	case "serve":
		return serveCommand(args)
	case "stages":
		return stagesCommand(args, out)
	case "version":
		fmt.Fprintf(out, "%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage(out)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return printUsage(out)
	}
}

func printUsage(out io.Writer) error {
	fmt.Fprintf(out, `%s - RFP analysis pipeline monitor

Usage:
  %s <command> [arguments]

Commands:
  run            Open the terminal dashboard and run the agent pipeline
  serve          Start the REST and WebSocket API server
  stages         List the agents of the configured catalog
  version        Print version information
  help           Show this help message

Examples:
  %s run
  %s run --session rfp-2026-114
  %s serve --config config.yaml
  %s stages --catalog agents.yaml
  %s stages --simulate

`, appName, appName, appName, appName, appName, appName, appName)
	return nil
}
