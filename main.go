package main

import (
	"fmt"
	"os"

	"github.com/Timvanhoudt/VirtualTeamLeader/cmd"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = buildinfo.UnknownValue
	commit    = buildinfo.UnknownValue
	buildDate = buildinfo.UnknownValue
)

func main() {
	build := buildinfo.New(version, commit, buildDate)

	if err := cmd.RootCommand(build).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
