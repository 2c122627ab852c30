package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/go-gloop/gloop"
)

var spawnCmd = &cobra.Command{
	Use:   "spawn -- command [args...]",
	Short: "Spawn a child process and report how it exited",
	Long: `spawn runs command as a child of the loop, reaping it via gloop's
SIGCHLD-based reaper rather than a dedicated os/exec.Cmd.Wait call, and
prints its exit status once it terminates.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpawn,
}

func runSpawn(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	loop, err := gloop.New(gloop.WithLogger(gloop.NewLogrusLogger(logger)))
	if err != nil {
		return fmt.Errorf("creating loop: %w", err)
	}

	child := exec.Command(args[0], args[1:]...)
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	if err := loop.Spawn(child, func(status gloop.ChildStatus) {
		switch {
		case status.Exited():
			fmt.Printf("pid %d exited with code %d\n", status.Pid, status.ExitCode())
		case status.Signaled():
			fmt.Printf("pid %d terminated by signal %s\n", status.Pid, status.Signal())
		default:
			fmt.Printf("pid %d terminated\n", status.Pid)
		}
		_ = loop.Quit()
	}); err != nil {
		return fmt.Errorf("spawning %v: %w", args, err)
	}

	return loop.Run()
}
