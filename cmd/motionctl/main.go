package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup   SetupCommand   `command:"setup" description:"Detect axis hardware and write the machine config"`
	Monitor MonitorCommand `command:"monitor" alias:"mon" description:"Live axis status dashboard"`
	Move    MoveCommand    `command:"move" description:"Move a single axis"`
	Home    HomeCommand    `command:"home" description:"Home a linear axis"`
	Stop    StopCommand    `command:"stop" description:"Stop one axis, or all of them"`
	Estop   EstopCommand   `command:"estop" description:"Emergency stop: halt every axis immediately"`
	Run     RunCommand     `command:"run" description:"Execute a CSV waypoint path"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "motionctl - coordinated control of linear stages and rotary steppers"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
