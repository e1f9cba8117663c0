// Package motionctl coordinates multi-axis motion rigs built from
// linear translation stages and rotary stepper drivers.
//
// Every axis, whatever its transport, exposes the same controller
// interface, so paths can mix stage positions and stepper speeds in a
// single synchronized waypoint.
//
// # Installation
//
//	go install github.com/gwillem/motionctl/cmd/motionctl@latest
//
// # Usage
//
// First, run setup to detect the axis hardware and write the config:
//
//	motionctl setup
//
// Then watch the axes, jog them, or run a waypoint path:
//
//	motionctl monitor
//	motionctl move --axis X --to 12.5 --wait
//	motionctl run path.csv --repeat 3
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/motionctl: CLI with setup, monitor, jog and path commands
//   - cmd/axis-info: serial port scanner for motion hardware
//   - pkg/command: line protocol channel for stepper drivers
//   - pkg/stage: linear translation stage devices
//   - pkg/axis: the uniform axis controller abstraction
//   - pkg/machine: registry, status poller, path executor and safety
package motionctl
