// Package main is the entry point for the loopscribe CLI.
//
// Usage:
//
//	loopscribe [flags] <command> [subcommand] [args]
//
// Commands:
//
//	run        - Capture system audio, transcribe, translate and extract questions
//	devices    - List audio capture devices
//	models     - Manage whisper models (list, refresh, download, delete)
//	config     - Show or initialize the configuration file
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/loopscribe/cmd/loopscribe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
