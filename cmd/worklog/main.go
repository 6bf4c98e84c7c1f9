// worklog is a command line client for a time-tracking API.
// Build with: go build -o bin/worklog ./cmd/worklog
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "worklog: %v\n", err)
		os.Exit(1)
	}
}
