package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gloopctl",
	Short: "Exercise the gloop main loop from the command line",
	Long: `gloopctl drives a gloop.MainLoop from outside a Go program: run one
with a timer and an idle source, spawn a child process and report how it
exited, or wait for a Unix signal and print each one as it arrives.

It exists to demonstrate the public gloop API end-to-end, not as a
general-purpose process supervisor.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gloopctl: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(signalCmd)
}
