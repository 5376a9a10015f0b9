package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/rhinorover/rhino/pkg/robot"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"rhino.json" description:"Config file (.json, .yaml or .yml)"`
	Connect string `long:"connect" description:"Vehicle address, e.g. udp:127.0.0.1:14550 or /dev/ttyACM0,57600"`
	Robot   string `short:"r" long:"robot" description:"Robot profile name"`
	LogDir  string `long:"log-dir" description:"Directory for telemetry logs"`
	Verbose bool   `short:"v" long:"verbose" description:"Show debug output"`

	Drive       DriveCommand       `command:"drive" description:"Run a scripted drive plan"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Drive from the keyboard"`
	Setup       SetupCommand       `command:"setup" description:"Pick the vehicle port and profile and save them"`
	Profiles    ProfilesCommand    `command:"profiles" description:"List robot profiles"`
	Ports       PortsCommand       `command:"ports" description:"List serial ports"`
	Replay      ReplayCommand      `command:"replay" description:"Summarize a telemetry log"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.TimeOnly,
	Prefix:          "rhino",
})

func main() {
	parser.LongDescription = "Rhino - drive RC rovers through a MAVLink autopilot"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if opts.Verbose {
			logger.SetLevel(log.DebugLevel)
		}
		log.SetDefault(logger)
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

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

// settings loads the config file, if any, and applies the global flags.
func settings() (*robot.Config, error) {
	cfg := &robot.Config{}
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		logger.Debug("Loaded configuration", "path", opts.Config)
	}

	if opts.Connect != "" {
		cfg.Connection = opts.Connect
	}
	if opts.Robot != "" {
		cfg.Robot = opts.Robot
	}
	if opts.LogDir != "" {
		cfg.LogDir = opts.LogDir
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// connect opens the configured robot. Telemetry rows are echoed to console.
func connect(ctx context.Context, console io.Writer) (*robot.Robot, *robot.Config, error) {
	cfg, err := settings()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Connection == "" {
		return nil, nil, fmt.Errorf("no vehicle address: pass --connect or run 'rhino setup' first")
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, nil, err
	}

	o := cfg.Options()
	o.Console = console
	o.Logger = logger

	r, err := robot.New(ctx, cfg.Connection, profile, o)
	if err != nil {
		return nil, nil, err
	}
	return r, cfg, nil
}

func closeRobot(r *robot.Robot) {
	if err := r.Close(); err != nil {
		logger.Error("Shutdown incomplete", "err", err)
		return
	}
	logger.Info("Connection closed", "log", r.LogPath())
}
