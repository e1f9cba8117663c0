package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gwillem/motionctl/pkg/machine"
)

// openMachine loads the config file and attaches every configured axis.
func openMachine(configFile string) (*machine.Machine, error) {
	cfg, err := machine.LoadConfigFrom(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'motionctl setup' first.")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return machine.FromConfig(ctx, cfg)
}

type MoveCommand struct {
	Config   string  `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
	Axis     string  `long:"axis" short:"a" required:"true" description:"Axis name"`
	Target   float64 `long:"to" description:"Absolute target (mm for linear, rps for rotary)"`
	Delta    float64 `long:"by" description:"Relative move instead of absolute"`
	Relative bool    `long:"relative" short:"r" description:"Treat --by as the move"`
	Wait     bool    `long:"wait" short:"w" description:"Block until the axis settles"`
}

func (c *MoveCommand) Execute(args []string) error {
	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	ctrl, err := mach.Controller(c.Axis)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if c.Relative {
		err = ctrl.MoveRelative(ctx, c.Delta)
	} else {
		err = ctrl.MoveAbsolute(ctx, c.Target)
	}
	if err != nil {
		return fmt.Errorf("move %s: %w", c.Axis, err)
	}

	if !c.Wait {
		return nil
	}
	for {
		busy, err := ctrl.Busy()
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", c.Axis, err)
		}
		if !busy {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	pos, err := ctrl.Position()
	if err != nil {
		return err
	}
	fmt.Printf("%s settled at %.3f\n", c.Axis, pos)
	return nil
}

type HomeCommand struct {
	Config string `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
	Axis   string `long:"axis" short:"a" required:"true" description:"Axis name"`
}

func (c *HomeCommand) Execute(args []string) error {
	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	ctrl, err := mach.Controller(c.Axis)
	if err != nil {
		return err
	}

	fmt.Printf("Homing %s...\n", c.Axis)
	if err := ctrl.Home(context.Background()); err != nil {
		return fmt.Errorf("home %s: %w", c.Axis, err)
	}
	fmt.Printf("%s homed.\n", c.Axis)
	return nil
}

type StopCommand struct {
	Config string `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
	Axis   string `long:"axis" short:"a" description:"Axis name (default: all axes)"`
}

func (c *StopCommand) Execute(args []string) error {
	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	ctx := context.Background()
	if c.Axis != "" {
		ctrl, err := mach.Controller(c.Axis)
		if err != nil {
			return err
		}
		return ctrl.Stop(ctx)
	}

	for _, name := range mach.Registry().Names() {
		ctrl, err := mach.Controller(name)
		if err != nil {
			continue
		}
		if err := ctrl.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "stop %s: %v\n", name, err)
		}
	}
	return nil
}

type EstopCommand struct {
	Config string `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
}

func (c *EstopCommand) Execute(args []string) error {
	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	mach.EmergencyStop()
	fmt.Println("All axes stopped.")
	return nil
}
