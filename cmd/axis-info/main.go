package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/motionctl/pkg/command"
)

// axis-info probes every serial port and reports what motion hardware
// answers: Feetech servo buses (linear stages) and stepper drivers
// speaking the line protocol.

func main() {
	fmt.Println("motionctl Port Scanner")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		os.Exit(1)
	}

	found := 0
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		if servos, ok := probeServoBus(port); ok {
			found++
			fmt.Printf("%s: Feetech servo bus\n", port)
			for _, s := range servos {
				fmt.Printf("  servo ID %d, model %v\n", s.ID, s.Model)
			}
			continue
		}
		if detail, ok := probeStepperDriver(port); ok {
			found++
			fmt.Printf("%s: stepper driver\n", port)
			fmt.Printf("  STATUS %s\n", detail)
			continue
		}
		fmt.Printf("%s: no answer\n", port)
	}

	fmt.Println()
	if found == 0 {
		fmt.Println("No motion hardware found.")
		fmt.Println("Make sure the stages are connected and powered on.")
		os.Exit(1)
	}
	fmt.Printf("Found %d device(s). Configure them with:\n", found)
	fmt.Println("  motionctl setup")
}

func probeServoBus(port string) ([]feetech.FoundServo, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, false
	}
	defer bus.Close()

	servos, err := bus.Scan(ctx, 1, 10)
	if err != nil || len(servos) == 0 {
		return nil, false
	}
	return servos, true
}

func probeStepperDriver(port string) (string, bool) {
	ch, err := command.Open(port, command.DefaultBaudRate)
	if err != nil {
		return "", false
	}
	defer ch.Close()

	resp, err := ch.Send("STATUS")
	if err != nil || resp.Kind != command.Status {
		return "", false
	}
	return resp.Detail, true
}
