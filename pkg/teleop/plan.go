package teleop

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v2"

	"github.com/rhinorover/rhino/pkg/robot"
)

// Step holds one command for a while.
type Step struct {
	Name     string         `yaml:"name"`
	Throttle float64        `yaml:"throttle"`
	Steering float64        `yaml:"steering"`
	Duration robot.Duration `yaml:"duration"`
	Brake    bool           `yaml:"brake,omitempty"`
}

// Plan is a scripted drive.
type Plan struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Validate checks that the plan has steps and that every step lasts.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Name)
	}
	for i, s := range p.Steps {
		if s.Duration <= 0 {
			return fmt.Errorf("plan %q step %d (%s): duration must be positive", p.Name, i+1, s.Name)
		}
	}
	return nil
}

// Duration returns the total planned time.
func (p Plan) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.Steps {
		d += time.Duration(s.Duration)
	}
	return d
}

func seconds(s float64) robot.Duration {
	return robot.Duration(time.Duration(s * float64(time.Second)))
}

var builtinPlans = map[string]Plan{
	"drive": {
		Name: "drive",
		Steps: []Step{
			{Name: "forward", Throttle: 0.25, Duration: seconds(3)},
			{Name: "right", Throttle: 0.15, Steering: 0.7, Duration: seconds(3)},
			{Name: "left", Throttle: 0.15, Steering: -0.7, Duration: seconds(3)},
			{Name: "stop", Duration: seconds(1)},
		},
	},
	"maneuver": {
		Name: "maneuver",
		Steps: []Step{
			{Name: "forward", Throttle: 0.5, Duration: seconds(3)},
			{Name: "stop", Brake: true, Duration: seconds(1)},
			{Name: "turn left", Steering: -1, Duration: seconds(2)},
		},
	},
}

// BuiltinPlan returns a plan shipped with the package.
func BuiltinPlan(name string) (Plan, bool) {
	p, ok := builtinPlans[name]
	if !ok {
		return Plan{}, false
	}
	p.Steps = append([]Step(nil), p.Steps...)
	return p, true
}

// BuiltinPlans returns the names of the shipped plans.
func BuiltinPlans() []string {
	names := make([]string, 0, len(builtinPlans))
	for name := range builtinPlans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	var p Plan
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return Plan{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = path
	}
	return p, p.Validate()
}

// Result counts what a plan run sent.
type Result struct {
	Commands  int // velocity commands and brakes sent
	Confirmed int // of those, how many got servo feedback
}

// RunPlan executes each step for its duration. Velocity steps are re-sent at
// hz; brake steps brake once and hold. It returns early with ctx.Err() when
// ctx is done.
func RunPlan(ctx context.Context, d Driver, p Plan, hz int, logger *log.Logger) (Result, error) {
	var res Result
	if err := p.Validate(); err != nil {
		return res, err
	}
	if hz <= 0 {
		hz = robot.DefaultHz
	}
	if logger == nil {
		logger = log.Default()
	}

	logger.Info("Starting plan", "plan", p.Name, "steps", len(p.Steps), "duration", p.Duration())

	for _, s := range p.Steps {
		logger.Info("Step", "name", s.Name, "throttle", s.Throttle, "steering", s.Steering,
			"brake", s.Brake, "duration", time.Duration(s.Duration))

		if err := runStep(ctx, d, s, hz, &res, logger); err != nil {
			return res, err
		}
	}

	logger.Info("Plan complete", "plan", p.Name, "commands", res.Commands, "confirmed", res.Confirmed)
	return res, nil
}

func runStep(ctx context.Context, d Driver, s Step, hz int, res *Result, logger *log.Logger) error {
	deadline := time.NewTimer(time.Duration(s.Duration))
	defer deadline.Stop()

	if s.Brake {
		res.Commands++
		if err := d.ApplyBrake(ctx); err != nil {
			logger.Warn("Brake", "err", err)
		} else {
			res.Confirmed++
		}
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		res.Commands++
		if d.SendVelocityCommand(ctx, s.Throttle, s.Steering) {
			res.Confirmed++
		}

		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
