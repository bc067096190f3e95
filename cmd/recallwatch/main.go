package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "recallwatch",
		Short:   "recallwatch: food recall details with up-to-date consumer summaries",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newResolveCmd(),
		newWarmCmd(),
		newCacheCmd(),
		newHistoryCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
