// Package robot drives an RC ground vehicle through its autopilot's RC
// override and records what it did.
package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rhinorover/rhino/pkg/link"
	"github.com/rhinorover/rhino/pkg/telemetry"
)

// Header is the first row of every telemetry log.
var Header = []string{
	"timestamp", "throttle_cmd", "steering_cmd",
	"servo1_raw", "servo2_raw", "servo3_raw", "servo4_raw",
	"servo5_raw", "servo6_raw", "servo7_raw", "servo8_raw",
}

// Transport is the vehicle link a Robot commands. *link.Controller
// implements it.
type Transport interface {
	WaitForLiveness(ctx context.Context, timeout time.Duration) error
	OverrideChannels(values map[int]uint16) error
	ReleaseChannels(channels ...int) error
	PollFeedback(ctx context.Context, timeout time.Duration) (*link.Feedback, error)
	Close() error
}

// Options tune how a Robot connects and logs. Zero values select defaults.
type Options struct {
	LogDir          string
	Baud            int
	LivenessTimeout time.Duration
	FeedbackTimeout time.Duration

	Console io.Writer        // echo of telemetry rows, os.Stdout if nil
	Logger  *log.Logger      // diagnostics, log.Default() if nil
	Now     func() time.Time // clock for timestamps, time.Now if nil
}

func (o *Options) applyDefaults() {
	if o.LogDir == "" {
		o.LogDir = DefaultLogDir
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = DefaultLivenessTimeout
	}
	if o.FeedbackTimeout <= 0 {
		o.FeedbackTimeout = DefaultFeedbackTimeout
	}
	if o.Console == nil {
		o.Console = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Robot is one connected vehicle. It is not safe for concurrent commands;
// one goroutine should own it.
type Robot struct {
	cfg       RobotConfig
	transport Transport
	telemetry *telemetry.Logger
	logger    *log.Logger
	now       func() time.Time

	feedbackTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// New connects to the vehicle at address and waits for its heartbeat.
func New(ctx context.Context, address string, cfg RobotConfig, opts Options) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	opts.Logger.Info("Connecting to vehicle", "address", address)
	t, err := link.Dial(address, link.Config{Baud: opts.Baud, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return Open(ctx, t, cfg, opts)
}

// Open builds a Robot on an already connected transport. The robot owns the
// transport from here on; it is closed if Open fails.
func Open(ctx context.Context, t Transport, cfg RobotConfig, opts Options) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		t.Close()
		return nil, err
	}
	opts.applyDefaults()

	opts.Logger.Info("Waiting for heartbeat...", "timeout", opts.LivenessTimeout)
	if err := t.WaitForLiveness(ctx, opts.LivenessTimeout); err != nil {
		t.Close()
		return nil, fmt.Errorf("no heartbeat from vehicle: %w", err)
	}

	tl, err := telemetry.Open(opts.LogDir, cfg.Name+"_log",
		telemetry.WithConsole(opts.Console),
		telemetry.WithClock(opts.Now),
	)
	if err != nil {
		t.Close()
		return nil, err
	}
	if err := tl.WriteRow(Header, true); err != nil {
		tl.Close()
		t.Close()
		return nil, err
	}
	opts.Logger.Info("Logging to", "path", tl.Path())
	opts.Logger.Info("Robot is ready", "name", cfg.Name)

	return &Robot{
		cfg:             cfg.clone(),
		transport:       t,
		telemetry:       tl,
		logger:          opts.Logger,
		now:             opts.Now,
		feedbackTimeout: opts.FeedbackTimeout,
	}, nil
}

// Name returns the profile name.
func (r *Robot) Name() string {
	return r.cfg.Name
}

// Config returns a copy of the robot's profile.
func (r *Robot) Config() RobotConfig {
	return r.cfg.clone()
}

// LogPath returns the telemetry file path.
func (r *Robot) LogPath() string {
	return r.telemetry.Path()
}

// SendVelocityCommand overrides the throttle and steering channels with
// throttle in [0, 1] and steering in [-1 (left), 1 (right)], then samples
// the servo outputs. It returns false if anything failed or no servo outputs
// came back; the override may still have been sent.
func (r *Robot) SendVelocityCommand(ctx context.Context, throttle, steering float64) bool {
	ok, err := r.sendVelocity(ctx, throttle, steering)
	if err != nil {
		r.logger.Error("Failed to send velocity command", "err", err)
		return false
	}
	return ok
}

func (r *Robot) sendVelocity(ctx context.Context, throttle, steering float64) (bool, error) {
	if r.isClosed() {
		return false, ErrClosed
	}

	throttlePWM := r.cfg.Throttle.Throttle(throttle)
	steeringPWM := r.cfg.Steering.Steering(steering)

	err := r.transport.OverrideChannels(map[int]uint16{
		r.cfg.Throttle.Channel: uint16(throttlePWM),
		r.cfg.Steering.Channel: uint16(steeringPWM),
	})
	if err != nil {
		return false, fmt.Errorf("override channels: %w", err)
	}

	cmd := []string{r.timestamp(), formatFloat(throttle), formatFloat(steering)}
	if err := r.telemetry.WriteRow(append(cmd, strconv.Itoa(throttlePWM), strconv.Itoa(steeringPWM)), false); err != nil {
		return false, err
	}

	fb, err := r.transport.PollFeedback(ctx, r.feedbackTimeout)
	if errors.Is(err, link.ErrTimeout) {
		r.logger.Warn("Could not retrieve servo outputs. Skipping log entry.")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("poll feedback: %w", err)
	}

	row := []string{r.timestamp(), formatFloat(throttle), formatFloat(steering)}
	for _, v := range fb.Servo {
		row = append(row, strconv.Itoa(int(v)))
	}
	if err := r.telemetry.WriteRow(row, false); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyBrake stops the vehicle. Without a brake channel that means zero
// throttle and centered steering. Profiles with a brake channel get
// ErrBrakeNotSupported.
func (r *Robot) ApplyBrake(ctx context.Context) error {
	if r.cfg.Brake != nil {
		return fmt.Errorf("%w: %s uses channel %d", ErrBrakeNotSupported, r.cfg.Name, r.cfg.Brake.Channel)
	}

	ok, err := r.sendVelocity(ctx, 0, 0)
	if err != nil {
		r.logger.Error("Failed to apply brake", "err", err)
		return err
	}
	if !ok {
		return ErrNoFeedback
	}
	return nil
}

// Close releases the throttle and steering overrides, closes the link and
// then the telemetry log. Every step runs even if an earlier one fails.
// Calling Close again does nothing.
func (r *Robot) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error

	r.logger.Info("Releasing RC override control...")
	if err := r.transport.ReleaseChannels(r.cfg.Throttle.Channel, r.cfg.Steering.Channel); err != nil {
		r.logger.Error("Failed to release overrides", "err", err)
		errs = append(errs, fmt.Errorf("release overrides: %w", err))
	}

	r.logger.Info("Closing MAVLink connection...")
	if err := r.transport.Close(); err != nil {
		r.logger.Error("Failed to close link", "err", err)
		errs = append(errs, fmt.Errorf("close link: %w", err))
	}

	r.logger.Info("Closing logger...")
	if err := r.telemetry.Close(); err != nil {
		r.logger.Error("Failed to close telemetry log", "err", err)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		r.logger.Info("Robot shut down", "name", r.cfg.Name)
	}
	return errors.Join(errs...)
}

func (r *Robot) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Robot) timestamp() string {
	return r.now().Format(telemetry.RowTimeFormat)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
