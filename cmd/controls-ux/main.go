package main

import (
	"fmt"
	"os"

	"github.com/GanizaniSitara/controls-ux/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "controls-ux: %v\n", err)
		os.Exit(1)
	}
}
