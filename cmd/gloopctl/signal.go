package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-gloop/gloop"
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Wait for SIGINT/SIGTERM and print each one as it arrives",
	Long: `signal registers a UnixSignalSource for SIGINT and SIGTERM, printing
each delivery and quitting on the first one received — or after --for
elapses with none, whichever comes first.`,
	RunE: runSignal,
}

var signalFor time.Duration

func init() {
	signalCmd.Flags().DurationVar(&signalFor, "for", 30*time.Second, "give up waiting after this long")
}

func runSignal(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	loop, err := gloop.New(gloop.WithLogger(gloop.NewLogrusLogger(logger)))
	if err != nil {
		return fmt.Errorf("creating loop: %w", err)
	}

	if _, err := loop.AddUnixSignal(func(sigs []syscall.Signal) any {
		for _, s := range sigs {
			fmt.Printf("received %s\n", s)
		}
		_ = loop.Quit()
		return nil
	}, os.Interrupt, syscall.SIGTERM); err != nil {
		return fmt.Errorf("registering signal source: %w", err)
	}

	if _, err := loop.AddOnce(signalFor, func() {
		fmt.Println("timed out waiting for a signal")
		_ = loop.Quit()
	}); err != nil {
		return fmt.Errorf("registering timeout: %w", err)
	}

	return loop.Run()
}
