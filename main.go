package main

import (
	"fmt"
	"os"

	"urlconn/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "urlconn: %v\n", err)
		os.Exit(1)
	}
}
