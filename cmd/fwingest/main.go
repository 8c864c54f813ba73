// Command fwingest loads a survey dictionary, stages a fixed-width extract
// and projects it into a relation named by the dictionary.
//
//	fwingest run --config pnad.yaml
//	fwingest stage --batch-size 100000 PNADC_042023.txt
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Register every storage backend; storage.kind picks one at runtime.
	_ "fwingest/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr, os.LookupEnv)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fwingest: %v\n", err)
		stop()
		os.Exit(1)
	}
}
