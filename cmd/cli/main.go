package main

import (
	"fmt"
	"os"

	"cn-dashboard/internal/cli"
)

func main() {
	if err := cli.NewCLI(cli.Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
