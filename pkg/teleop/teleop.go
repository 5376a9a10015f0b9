// Package teleop runs the fixed-rate command loop that keeps a vehicle
// under RC override.
package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rhinorover/rhino/pkg/robot"
)

// Driver is the part of *robot.Robot the control loop uses.
type Driver interface {
	SendVelocityCommand(ctx context.Context, throttle, steering float64) bool
	ApplyBrake(ctx context.Context) error
	Config() robot.RobotConfig
}

// State is the outcome of one control step.
type State struct {
	Throttle    float64
	Steering    float64
	ThrottlePWM int
	SteeringPWM int
	Feedback    bool // servo outputs came back
	Braking     bool
	Timestamp   time.Time
	Error       error
}

// Controller manages the teleoperation control loop.
type Controller struct {
	driver Driver
	cfg    robot.RobotConfig
	hz     int
	step   float64

	mu       sync.RWMutex
	throttle float64
	steering float64
	brake    bool
	running  bool
	stateCh  chan State
	logCh    chan string
}

// Config holds configuration for the controller.
type Config struct {
	Hz   int     // command rate, robot.DefaultHz if zero
	Step float64 // setpoint change per Nudge, 0.05 if zero
}

// NewController creates a new teleoperation controller.
func NewController(driver Driver, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = robot.DefaultHz
	}
	if cfg.Step <= 0 {
		cfg.Step = 0.05
	}

	return &Controller{
		driver:  driver,
		cfg:     driver.Config(),
		hz:      cfg.Hz,
		step:    cfg.Step,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Setpoint returns the throttle and steering sent on the next step.
func (c *Controller) Setpoint() (throttle, steering float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.throttle, c.steering
}

// Set replaces the setpoint. Values are clamped to their ranges.
func (c *Controller) Set(throttle, steering float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttle = clamp(throttle, 0, 1)
	c.steering = clamp(steering, -1, 1)
	c.brake = false
}

// Nudge moves the setpoint by the given number of steps.
func (c *Controller) Nudge(throttleSteps, steeringSteps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttle = clamp(c.throttle+float64(throttleSteps)*c.step, 0, 1)
	c.steering = clamp(c.steering+float64(steeringSteps)*c.step, -1, 1)
	c.brake = false
}

// Center zeroes the steering.
func (c *Controller) Center() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steering = 0
}

// Brake zeroes the setpoint and brakes on the next step.
func (c *Controller) Brake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttle, c.steering = 0, 0
	c.brake = true
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is done. The vehicle is braked on
// the way out.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log("Driving %s at %d Hz", c.cfg.Name, c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	throttle, steering, brake := c.throttle, c.steering, c.brake
	c.brake = false
	c.mu.Unlock()

	s := State{
		Throttle:    throttle,
		Steering:    steering,
		ThrottlePWM: c.cfg.Throttle.Throttle(throttle),
		SteeringPWM: c.cfg.Steering.Steering(steering),
		Braking:     brake,
	}

	if brake {
		if err := c.driver.ApplyBrake(ctx); err != nil {
			c.log("Brake: %v", err)
			s.Error = err
		} else {
			s.Feedback = true
		}
	} else {
		s.Feedback = c.driver.SendVelocityCommand(ctx, throttle, steering)
		if !s.Feedback {
			c.log("No servo feedback")
		}
	}

	s.Timestamp = time.Now()
	c.sendState(s)
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.throttle, c.steering = 0, 0
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.driver.ApplyBrake(ctx); err != nil {
		c.log("Warning: brake on stop: %v", err)
	}
	c.log("Teleoperation stopped")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
