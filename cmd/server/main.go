// Package main is the entry point for the pm2-remote server and admin CLI.
package main

import (
	"os"

	"github.com/pandeptwidyaop/pm2-remote/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
