// Package rhino drives RC ground vehicles (rovers, crawlers) through a
// MAVLink autopilot by overriding their throttle and steering channels, and
// records every command and servo reading to a CSV log.
//
// # Installation
//
//	go install github.com/rhinorover/rhino/cmd/rhino@latest
//
// # Usage
//
// Pick the vehicle port and robot profile once:
//
//	rhino setup
//
// Then run a scripted drive or take the keyboard:
//
//	rhino drive --plan maneuver
//	rhino teleoperate
//
// Against a simulator:
//
//	rhino --connect udp:127.0.0.1:14550 drive
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/rhino: CLI with drive, teleoperate, setup, profiles, ports and replay commands
//   - pkg/link: MAVLink vehicle link (heartbeat, RC override, servo feedback)
//   - pkg/robot: Robot profiles, PWM mapping, configuration and the Robot itself
//   - pkg/telemetry: CSV drive logs
//   - pkg/teleop: Teleoperation controller and scripted plans
package rhino
