package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-gloop/gloop"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a loop with a repeating timer and an idle counter",
	Long: `run registers a repeating TimeoutSource and an IdleSource on a fresh
MainLoop, prints a line on each timer tick, and quits after --for elapses.
It exists to demonstrate Run, AddTimeout, AddIdle, and AddOnce together.`,
	RunE: runRun,
}

var (
	runEvery    time.Duration
	runFor      time.Duration
	runShowIdle bool
)

func init() {
	runCmd.Flags().DurationVar(&runEvery, "every", time.Second, "timer tick interval")
	runCmd.Flags().DurationVar(&runFor, "for", 5*time.Second, "total run duration")
	runCmd.Flags().BoolVar(&runShowIdle, "show-idle", false, "print every idle iteration (noisy)")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	loop, err := gloop.New(gloop.WithLogger(gloop.NewLogrusLogger(logger)))
	if err != nil {
		return fmt.Errorf("creating loop: %w", err)
	}

	ticks := 0
	if _, err := loop.AddTimeout(runEvery, func(any) any {
		ticks++
		fmt.Printf("tick %d\n", ticks)
		return nil
	}); err != nil {
		return fmt.Errorf("registering timer: %w", err)
	}

	idles := 0
	if _, err := loop.AddIdle(func(any) any {
		idles++
		if runShowIdle {
			fmt.Printf("idle %d\n", idles)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("registering idle source: %w", err)
	}

	if _, err := loop.AddOnce(runFor, func() {
		fmt.Printf("run duration elapsed after %d ticks, %d idle iterations\n", ticks, idles)
		_ = loop.Quit()
	}); err != nil {
		return fmt.Errorf("registering shutdown timer: %w", err)
	}

	return loop.Run()
}
