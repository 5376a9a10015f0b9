package teleop

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinorover/rhino/pkg/robot"
)

func ms(n int) robot.Duration {
	return robot.Duration(time.Duration(n) * time.Millisecond)
}

func TestBuiltinPlans(t *testing.T) {
	assert.Equal(t, []string{"drive", "maneuver"}, BuiltinPlans())

	drive, ok := BuiltinPlan("drive")
	require.True(t, ok)
	require.NoError(t, drive.Validate())
	assert.Equal(t, 10*time.Second, drive.Duration())
	assert.Equal(t, Step{Name: "forward", Throttle: 0.25, Duration: seconds(3)}, drive.Steps[0])

	maneuver, ok := BuiltinPlan("maneuver")
	require.True(t, ok)
	assert.True(t, maneuver.Steps[1].Brake)

	_, ok = BuiltinPlan("donut")
	assert.False(t, ok)
}

func TestBuiltinPlan_ReturnsCopy(t *testing.T) {
	p, _ := BuiltinPlan("drive")
	p.Steps[0].Throttle = 1

	again, _ := BuiltinPlan("drive")
	assert.Equal(t, 0.25, again.Steps[0].Throttle)
}

func TestPlan_Validate(t *testing.T) {
	assert.Error(t, Plan{Name: "empty"}.Validate())
	assert.Error(t, Plan{Name: "zero", Steps: []Step{{Name: "x"}}}.Validate())
	assert.NoError(t, Plan{Steps: []Step{{Duration: ms(1)}}}.Validate())
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.yaml")
	data := `name: square
steps:
  - name: forward
    throttle: 0.3
    duration: 2s
  - name: stop
    brake: true
    duration: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	p, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "square", p.Name)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, 0.3, p.Steps[0].Throttle)
	assert.Equal(t, ms(500), p.Steps[1].Duration)
	assert.True(t, p.Steps[1].Brake)
}

func TestLoadPlan_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPlan(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("steps:\n  - speed: 1\n"), 0644))
	_, err = LoadPlan(unknown)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\n"), 0644))
	_, err = LoadPlan(empty)
	assert.Error(t, err)
}

func TestRunPlan(t *testing.T) {
	d := newFakeDriver()
	p := Plan{
		Name: "short",
		Steps: []Step{
			{Name: "forward", Throttle: 0.5, Duration: ms(30)},
			{Name: "stop", Brake: true, Duration: ms(10)},
			{Name: "turn", Steering: -1, Duration: ms(30)},
		},
	}

	res, err := RunPlan(context.Background(), d, p, 200, log.New(io.Discard))
	require.NoError(t, err)

	cmds, brakes := d.snapshot()
	assert.Equal(t, 1, brakes)
	require.NotEmpty(t, cmds)
	assert.Equal(t, command{0.5, 0}, cmds[0])
	assert.Equal(t, command{0, -1}, cmds[len(cmds)-1])
	assert.Equal(t, len(cmds)+1, res.Commands)
	assert.Equal(t, res.Commands, res.Confirmed)
}

func TestRunPlan_CountsUnconfirmed(t *testing.T) {
	d := newFakeDriver()
	d.ok = false
	d.brakeErr = robot.ErrNoFeedback
	p := Plan{Steps: []Step{
		{Throttle: 0.2, Duration: ms(10)},
		{Brake: true, Duration: ms(1)},
	}}

	res, err := RunPlan(context.Background(), d, p, 100, log.New(io.Discard))
	require.NoError(t, err)
	assert.Positive(t, res.Commands)
	assert.Equal(t, 0, res.Confirmed)
}

func TestRunPlan_Cancel(t *testing.T) {
	d := newFakeDriver()
	p := Plan{Steps: []Step{{Throttle: 0.2, Duration: robot.Duration(time.Hour)}}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := RunPlan(ctx, d, p, 100, log.New(io.Discard))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunPlan_Invalid(t *testing.T) {
	d := newFakeDriver()
	_, err := RunPlan(context.Background(), d, Plan{}, 10, nil)
	assert.Error(t, err)

	cmds, _ := d.snapshot()
	assert.Empty(t, cmds)
}
