package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coursetrace",
		Short: "coursetrace - learning-activity record store and progress engine",
		Long: `coursetrace ingests learning-activity statements, stores resumable
per-learner state, and derives course progress by replaying the event
stream.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(verbCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
