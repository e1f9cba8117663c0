package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/motionctl/pkg/axis"
	"github.com/gwillem/motionctl/pkg/command"
	"github.com/gwillem/motionctl/pkg/machine"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("motionctl Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	fmt.Println("Scanning serial ports for axis hardware...")
	fmt.Println()

	stages, steppers := probePorts()

	cfg := &machine.Config{Axes: map[string]machine.AxisConfig{}}

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Linear stage ━━━"))
	fmt.Println()
	configureLinear(cfg, stages)

	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Rotary stepper ━━━"))
	fmt.Println()
	configureRotary(cfg, steppers)

	if len(cfg.Axes) == 0 {
		fmt.Println("No axes configured, nothing to save.")
		os.Exit(1)
	}

	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", machine.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Watch the axes with: " + headerStyle.Render("motionctl monitor"))

	return nil
}

// stageInfo is a port with a Feetech servo answering on it.
type stageInfo struct {
	port  string
	servo feetech.FoundServo
}

// probePorts classifies every serial port: a Feetech servo bus means a
// linear stage, a port answering the STATUS line command means a
// stepper driver. Ports that answer neither are skipped.
func probePorts() ([]stageInfo, []string) {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil, nil
	}

	var stages []stageInfo
	var steppers []string

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		if servo, ok := probeStage(port); ok {
			fmt.Printf("  Found servo stage on %s (servo ID %d)\n", port, servo.ID)
			stages = append(stages, stageInfo{port: port, servo: servo})
			continue
		}
		if probeStepper(port) {
			fmt.Printf("  Found stepper driver on %s\n", port)
			steppers = append(steppers, port)
		}
	}
	return stages, steppers
}

func probeStage(port string) (feetech.FoundServo, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return feetech.FoundServo{}, false
	}
	defer bus.Close()

	servos, err := bus.Scan(ctx, 1, 10)
	if err != nil || len(servos) == 0 {
		return feetech.FoundServo{}, false
	}
	return servos[0], true
}

func probeStepper(port string) bool {
	ch, err := command.Open(port, command.DefaultBaudRate)
	if err != nil {
		return false
	}
	defer ch.Close()

	resp, err := ch.Send("STATUS")
	return err == nil && resp.Kind == command.Status
}

func configureLinear(cfg *machine.Config, stages []stageInfo) {
	options := []huh.Option[string]{}
	for _, s := range stages {
		options = append(options, huh.NewOption(
			fmt.Sprintf("%s (servo ID %d)", s.port, s.servo.ID), s.port))
	}
	options = append(options,
		huh.NewOption("Simulated stage (no hardware)", "sim"),
		huh.NewOption("Skip", "skip"),
	)

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port drives the linear stage?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	switch choice {
	case "skip":
		return
	case "sim":
		cfg.Axes["X"] = machine.AxisConfig{Kind: axis.Linear, Driver: machine.DriverSim}
	default:
		for _, s := range stages {
			if s.port == choice {
				cfg.Axes["X"] = machine.AxisConfig{
					Kind:    axis.Linear,
					Driver:  machine.DriverFeetech,
					Port:    s.port,
					ServoID: s.servo.ID,
				}
			}
		}
	}
	fmt.Println(successStyle.Render("Linear axis X configured."))
}

func configureRotary(cfg *machine.Config, steppers []string) {
	options := []huh.Option[string]{}
	for _, port := range steppers {
		options = append(options, huh.NewOption(port, port))
	}
	options = append(options,
		huh.NewOption("Simulated stepper (no hardware)", "sim"),
		huh.NewOption("Skip", "skip"),
	)

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port drives the rotary stepper?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	switch choice {
	case "skip":
		return
	case "sim":
		cfg.Axes["Rotation"] = machine.AxisConfig{Kind: axis.Rotary, Driver: machine.DriverSim}
	default:
		cfg.Axes["Rotation"] = machine.AxisConfig{
			Kind:     axis.Rotary,
			Driver:   machine.DriverSerial,
			Port:     choice,
			BaudRate: command.DefaultBaudRate,
		}
	}
	fmt.Println(successStyle.Render("Rotary axis Rotation configured."))
}
