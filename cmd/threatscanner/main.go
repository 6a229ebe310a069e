package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "threatscanner: %v\n", err)
		os.Exit(1)
	}
}
