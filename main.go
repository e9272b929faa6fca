package main

import (
	"fmt"
	"os"

	"github.com/tphakala/voicecap/cmd"
	"github.com/tphakala/voicecap/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	rootCmd, cleanup := cmd.RootCommand(buildinfo.New(version, buildDate))
	err := rootCmd.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecap: %v\n", err)
		os.Exit(1)
	}
}
