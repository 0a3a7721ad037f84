// Package main is the entry point for the courier CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"courier/pkg/watch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "courier: %v\n", err)

		// A dead event stream must be distinguishable from a clean stop so
		// supervisors notice the watcher is gone.
		var fatal *watch.FatalWatcherError
		if errors.As(err, &fatal) {
			os.Exit(watch.ExitFatal)
		}
		os.Exit(1)
	}
	os.Exit(watch.ExitClean)
}
