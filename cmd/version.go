package cmd

import "fmt"

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	GitCommit = "unknown"
)

func runVersion() {
	fmt.Printf("portfolio %s (%s)\n", Version, GitCommit)
}
