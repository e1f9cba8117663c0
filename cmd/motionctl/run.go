package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwillem/motionctl/pkg/machine"
)

type RunCommand struct {
	Config      string        `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
	Repeat      int           `long:"repeat" short:"n" description:"Number of times to run the path" default:"1"`
	StepDelay   time.Duration `long:"step-delay" description:"Dwell between waypoints" default:"0s"`
	StepTimeout time.Duration `long:"step-timeout" description:"Per-waypoint settle timeout" default:"60s"`

	Args struct {
		Path string `positional-arg-name:"PATH" description:"CSV waypoint file" required:"true"`
	} `positional-args:"true"`
}

func (c *RunCommand) Execute(args []string) error {
	path, err := machine.LoadPath(c.Args.Path)
	if err != nil {
		return err
	}

	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mach.Run(ctx)

	exec := mach.Executor()
	exec.SetStepTimeout(c.StepTimeout)
	if err := exec.Start(path, c.Repeat, c.StepDelay); err != nil {
		return err
	}
	fmt.Printf("Running %s: %d waypoint(s), %d repeat(s)\n", c.Args.Path, path.Len(), c.Repeat)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	interrupted := false

	for {
		select {
		case <-sigs:
			if interrupted {
				// Second interrupt means we stop being polite.
				fmt.Fprintln(os.Stderr, "emergency stop")
				mach.EmergencyStop()
				return fmt.Errorf("run aborted")
			}
			interrupted = true
			fmt.Fprintln(os.Stderr, "stopping (interrupt again for emergency stop)")
			go exec.Stop()

		case ev := <-exec.Events():
			switch ev.Kind {
			case machine.EventProgress:
				fmt.Printf("  %3d%%  %s\n", ev.Percent, ev.Message)
			case machine.EventCompleted:
				fmt.Println("Path completed.")
				return nil
			case machine.EventStopped:
				fmt.Println("Path stopped.")
				return nil
			case machine.EventFailed:
				return fmt.Errorf("path failed: %w", ev.Err)
			}
		}
	}
}
