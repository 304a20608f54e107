// Package main is the entry point for the speakerid CLI.
//
// Usage:
//
//	speakerid [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the HTTP speaker identification server
//	enroll    - Submit an enrollment clip for a user
//	identify  - Identify the speaker in an audio clip
//	users     - List enrolled users
//	delete    - Delete an enrolled user
//	snapshot  - Save or restore a voiceprint snapshot
//
// Configuration is read from a YAML file (--config), a .env file in the
// working directory, and SPEAKERID_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/speakerid/cmd/speakerid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
