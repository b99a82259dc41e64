package main

import (
	"context"
	"fmt"
	"os"
)

// App is the process-wide application instance, set up before the cli runs.
var App *PolicyApp

func main() {
	App = initApp()
	if err := App.cliCmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
