package main

import (
	"errors"
	"fmt"
	"os"

	"monfill/cmd/monfill/commands"
	"monfill/internal/pipeline"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
