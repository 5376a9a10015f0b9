package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial/enumerator"

	"github.com/rhinorover/rhino/pkg/robot"
)

var (
	tableHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle    = lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true).Padding(0, 1)
)

func renderTable(headers []string, rows [][]string, highlight func(row int) bool) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case highlight != nil && highlight(row):
				return tableCurrentStyle
			case col == 0:
				return tableNameStyle
			default:
				return tableCellStyle
			}
		})
	return t.Render()
}

type ProfilesCommand struct{}

func pwmSpan(c robot.ChannelSpec) string {
	return fmt.Sprintf("%d-%d", c.MinPWM, c.MaxPWM)
}

func (c *ProfilesCommand) Execute(args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	names := reg.Names()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		p, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		brake := "-"
		if p.Brake != nil {
			brake = fmt.Sprintf("ch%d %s", p.Brake.Channel, pwmSpan(*p.Brake))
		}
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(p.Throttle.Channel), pwmSpan(p.Throttle),
			strconv.Itoa(p.Steering.Channel), pwmSpan(p.Steering),
			brake,
		})
	}

	fmt.Println(renderTable(
		[]string{"Profile", "Throttle ch", "Throttle PWM", "Steering ch", "Steering PWM", "Brake"},
		rows,
		func(row int) bool {
			return row >= 0 && row < len(rows) && strings.EqualFold(rows[row][0], cfg.Robot)
		},
	))
	fmt.Println(dimStyle.Render("Selected: " + cfg.Robot))
	return nil
}

type PortsCommand struct{}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		usb := "-"
		if p.IsUSB {
			usb = fmt.Sprintf("%s:%s", p.VID, p.PID)
		}
		rows = append(rows, []string{p.Name, usb, p.Product, p.SerialNumber})
	}

	fmt.Println(renderTable([]string{"Port", "USB ID", "Product", "Serial"}, rows, nil))
	fmt.Println(dimStyle.Render("Use a port with: rhino --connect PORT[,BAUD] drive"))
	return nil
}
