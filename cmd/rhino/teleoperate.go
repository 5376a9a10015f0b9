package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/rhinorover/rhino/pkg/robot"
	"github.com/rhinorover/rhino/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz   int     `long:"hz" description:"Control loop frequency, from the config file if unset"`
	Step float64 `long:"step" default:"0.05" description:"Throttle and steering change per key press"`
}

const (
	headerHeight = 2 // title + blank line
	statusHeight = 2 // status row + blank
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

const (
	throttleSeries = "throttle"
	steeringSeries = "steering"
)

var seriesColors = map[string]string{
	throttleSeries: "208", // orange
	steeringSeries: "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type teleopModel struct {
	ctrl     *teleop.Controller
	cfg      robot.RobotConfig
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	last     teleop.State
	steps    int
	missed   int
	quitting bool
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - statusHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

// pwmRange spans both channels so the two lines share one axis.
func pwmRange(cfg robot.RobotConfig) (lo, hi float64) {
	lo = float64(min(cfg.Throttle.MinPWM, cfg.Steering.MinPWM))
	hi = float64(max(cfg.Throttle.MaxPWM, cfg.Steering.MaxPWM))
	return lo - 50, hi + 50
}

func initialTeleopModel(ctrl *teleop.Controller, cfg robot.RobotConfig) teleopModel {
	lo, hi := pwmRange(cfg)
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(lo, hi),
	)

	for _, name := range []string{throttleSeries, steeringSeries} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:  ctrl,
		cfg:   cfg,
		chart: &chart,
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "w", "up":
			m.ctrl.Nudge(1, 0)
		case "s", "down":
			m.ctrl.Nudge(-1, 0)
		case "a", "left":
			m.ctrl.Nudge(0, -1)
		case "d", "right":
			m.ctrl.Nudge(0, 1)
		case "c":
			m.ctrl.Center()
		case " ":
			m.ctrl.Brake()
		}
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		m.last = state
		m.steps++
		if !state.Feedback {
			m.missed++
		}
		m.chart.PushDataSet(throttleSeries, float64(state.ThrottlePWM))
		m.chart.PushDataSet(steeringSeries, float64(state.SteeringPWM))
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Rhino Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %s @ %d Hz", m.cfg.Name, m.ctrl.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("w/s throttle  a/d steer  c center  space brake  q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m teleopModel) renderStatus() string {
	s := m.last
	status := fmt.Sprintf("throttle %.2f (%d)  steering %+.2f (%d)",
		s.Throttle, s.ThrottlePWM, s.Steering, s.SteeringPWM)

	feedback := okStyle.Render("feedback ok")
	if m.steps > 0 && !s.Feedback {
		feedback = warnStyle.Render("no feedback")
	}
	if s.Braking {
		feedback = warnStyle.Render("braking")
	}
	return status + "  " + feedback + statusStyle.Render(fmt.Sprintf("  missed %d/%d", m.missed, m.steps))
}

func renderLegend() string {
	var items []string
	for _, name := range []string{throttleSeries, steeringSeries} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name+" PWM")
	}
	return strings.Join(items, "  ")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rows would scribble over the TUI; they still go to the CSV file.
	r, cfg, err := connect(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer closeRobot(r)

	hz := c.Hz
	if hz <= 0 {
		hz = cfg.Hz
	}
	ctrl := teleop.NewController(r, teleop.Config{Hz: hz, Step: c.Step})

	logger.SetOutput(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Start(ctx)
	}()

	p := tea.NewProgram(initialTeleopModel(ctrl, r.Config()), tea.WithAltScreen())
	_, runErr := p.Run()

	// Stop the loop before the robot is closed.
	cancel()
	err = <-done
	logger.SetOutput(os.Stderr)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Controller error", "err", err)
	}

	if runErr != nil {
		return fmt.Errorf("error running program: %w", runErr)
	}
	return nil
}
