package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.bug.st/serial"

	"github.com/rhinorover/rhino/pkg/link"
	"github.com/rhinorover/rhino/pkg/robot"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	sitlAddress  = "udp:127.0.0.1:14550"
	customOption = "custom"
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Rhino Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := settings()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Warn("Could not list serial ports", "err", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found. Plug in the flight controller or pick a network address.")
		fmt.Println()
	}

	connection := cfg.Connection
	choice := connectionChoice(connection, ports)
	custom := connection
	baud := strconv.Itoa(link.DefaultBaud)
	if cfg.Baud > 0 {
		baud = strconv.Itoa(cfg.Baud)
	}
	profile := cfg.Robot

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How is the vehicle connected?").
				Options(connectionOptions(ports)...).
				Value(&choice),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Vehicle address").
				Description("udp:HOST:PORT, udpout:HOST:PORT, tcp:HOST:PORT or a serial device").
				Value(&custom).
				Validate(func(s string) error {
					_, err := link.ParseAddress(s, 0)
					return err
				}),
		).WithHideFunc(func() bool { return choice != customOption }),
		huh.NewGroup(
			huh.NewInput().
				Title("Serial baud rate").
				Value(&baud).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 {
						return fmt.Errorf("not a baud rate: %q", s)
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !isSerialChoice(choice, ports) }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which robot is it?").
				Options(profileOptions(reg)...).
				Value(&profile),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg.Connection = choice
	if choice == customOption {
		cfg.Connection = custom
	}
	cfg.Baud = 0
	if isSerialChoice(choice, ports) {
		cfg.Baud, _ = strconv.Atoi(baud)
	}
	cfg.Robot = profile

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("  Connection: %s\n", cfg.Connection)
	fmt.Printf("  Robot:      %s\n", cfg.Robot)
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start driving with: " + headerStyle.Render("rhino teleoperate"))

	return nil
}

func connectionOptions(ports []string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(ports)+2)
	for _, p := range ports {
		options = append(options, huh.NewOption("Serial "+p, p))
	}
	options = append(options,
		huh.NewOption("Simulator (SITL) on "+sitlAddress, sitlAddress),
		huh.NewOption("Other address...", customOption),
	)
	return options
}

// connectionChoice preselects the saved connection if it is still offered.
func connectionChoice(current string, ports []string) string {
	if current == "" {
		if len(ports) > 0 {
			return ports[0]
		}
		return sitlAddress
	}
	if current == sitlAddress {
		return current
	}
	for _, p := range ports {
		if p == current {
			return p
		}
	}
	return customOption
}

func isSerialChoice(choice string, ports []string) bool {
	for _, p := range ports {
		if p == choice {
			return true
		}
	}
	return false
}

func profileOptions(reg *robot.Registry) []huh.Option[string] {
	names := reg.Names()
	options := make([]huh.Option[string], 0, len(names))
	for _, name := range names {
		p, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		label := fmt.Sprintf("%s (throttle ch%d %d-%d, steering ch%d %d-%d)", name,
			p.Throttle.Channel, p.Throttle.MinPWM, p.Throttle.MaxPWM,
			p.Steering.Channel, p.Steering.MinPWM, p.Steering.MaxPWM)
		options = append(options, huh.NewOption(label, name))
	}
	return options
}
