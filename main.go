package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/linkbridge/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "linkbridge: %v\n", err)
		os.Exit(1)
	}
}
