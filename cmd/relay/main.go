// Package main is the relay command line client.
package main

import (
	"os"

	"github.com/pricofy/translation-relay/cmd/relay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
