package robot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinorover/rhino/pkg/link"
	"github.com/rhinorover/rhino/pkg/telemetry"
)

type fakeTransport struct {
	livenessErr error
	overrideErr error
	releaseErr  error
	feedback    *link.Feedback
	feedbackErr error

	overrides []map[int]uint16
	releases  [][]int
	polls     int
	closes    int
	calls     []string
}

func (f *fakeTransport) WaitForLiveness(ctx context.Context, timeout time.Duration) error {
	f.calls = append(f.calls, "liveness")
	return f.livenessErr
}

func (f *fakeTransport) OverrideChannels(values map[int]uint16) error {
	f.calls = append(f.calls, "override")
	if f.overrideErr != nil {
		return f.overrideErr
	}
	f.overrides = append(f.overrides, values)
	return nil
}

func (f *fakeTransport) ReleaseChannels(channels ...int) error {
	f.calls = append(f.calls, "release")
	f.releases = append(f.releases, channels)
	return f.releaseErr
}

func (f *fakeTransport) PollFeedback(ctx context.Context, timeout time.Duration) (*link.Feedback, error) {
	f.calls = append(f.calls, "poll")
	f.polls++
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	if f.feedback == nil {
		return nil, link.ErrTimeout
	}
	return f.feedback, nil
}

func (f *fakeTransport) Close() error {
	f.calls = append(f.calls, "close")
	f.closes++
	return nil
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		LogDir:  t.TempDir(),
		Console: &bytes.Buffer{},
		Logger:  log.New(io.Discard),
		Now: func() time.Time {
			return time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
		},
	}
}

func openRobot(t *testing.T, ft *fakeTransport, cfg RobotConfig) *Robot {
	t.Helper()
	r, err := Open(context.Background(), ft, cfg, testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func readRows(t *testing.T, r *Robot) *telemetry.Log {
	t.Helper()
	require.NoError(t, r.Close())
	l, err := telemetry.ReadLog(r.LogPath())
	require.NoError(t, err)
	return l
}

func TestOpen_WritesHeader(t *testing.T) {
	ft := &fakeTransport{}
	r := openRobot(t, ft, Rhino)

	assert.Equal(t, "rhino", r.Name())
	assert.Contains(t, r.LogPath(), "rhino_log_20250314_092653.csv")

	l := readRows(t, r)
	assert.Equal(t, Header, l.Header)
	assert.Empty(t, l.Rows)
}

func TestOpen_NoHeartbeat(t *testing.T) {
	ft := &fakeTransport{livenessErr: link.ErrTimeout}

	_, err := Open(context.Background(), ft, Rhino, testOptions(t))
	assert.ErrorIs(t, err, link.ErrTimeout)
	assert.Equal(t, 1, ft.closes)
}

func TestOpen_InvalidConfig(t *testing.T) {
	ft := &fakeTransport{}
	cfg := Rhino
	cfg.Steering.Channel = cfg.Throttle.Channel

	_, err := Open(context.Background(), ft, cfg, testOptions(t))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1, ft.closes)
}

func TestSendVelocityCommand(t *testing.T) {
	ft := &fakeTransport{feedback: &link.Feedback{Servo: [8]uint16{1500, 0, 1300, 0, 0, 0, 0, 0}}}
	r := openRobot(t, ft, Rhino)

	assert.True(t, r.SendVelocityCommand(context.Background(), 0.25, 0.0))

	require.Len(t, ft.overrides, 1)
	assert.Equal(t, map[int]uint16{3: 1300, 1: 1500}, ft.overrides[0])
	assert.Equal(t, 1, ft.polls)

	l := readRows(t, r)
	require.Len(t, l.Rows, 2)
	assert.Equal(t, []string{"2025-03-14 09:26:53", "0.25", "0", "1300", "1500"}, l.Rows[0])
	assert.Equal(t, []string{"2025-03-14 09:26:53", "0.25", "0", "1500", "0", "1300", "0", "0", "0", "0", "0"}, l.Rows[1])
}

func TestSendVelocityCommand_LoggedPWMMatchesMapper(t *testing.T) {
	ft := &fakeTransport{}
	r := openRobot(t, ft, Hound)

	commands := [][2]float64{{0, 0}, {0.5, -1}, {1, 1}, {0.33, 0.7}, {-2, 5}}
	for _, c := range commands {
		r.SendVelocityCommand(context.Background(), c[0], c[1])
	}

	l := readRows(t, r)
	require.Len(t, l.Rows, len(commands))
	for i, c := range commands {
		assert.Equal(t, strconv.Itoa(MapThrottle(c[0], 1500, 1900)), l.Rows[i][3])
		assert.Equal(t, strconv.Itoa(MapSteering(c[1], 1100, 1900)), l.Rows[i][4])
		assert.Equal(t, uint16(MapThrottle(c[0], 1500, 1900)), ft.overrides[i][3])
	}
}

func TestSendVelocityCommand_FeedbackTimeout(t *testing.T) {
	ft := &fakeTransport{}
	r := openRobot(t, ft, Rhino)

	assert.False(t, r.SendVelocityCommand(context.Background(), 0.5, 0))
	assert.Len(t, ft.overrides, 1)

	l := readRows(t, r)
	assert.Len(t, l.Rows, 1)
}

func TestSendVelocityCommand_TransportError(t *testing.T) {
	ft := &fakeTransport{overrideErr: link.ErrNotReady}
	r := openRobot(t, ft, Rhino)

	assert.False(t, r.SendVelocityCommand(context.Background(), 0.5, 0))
	assert.Equal(t, 0, ft.polls)

	// The loop keeps going after a failure.
	ft.overrideErr = nil
	ft.feedback = &link.Feedback{}
	assert.True(t, r.SendVelocityCommand(context.Background(), 0.5, 0))
}

func TestSendVelocityCommand_AfterClose(t *testing.T) {
	ft := &fakeTransport{feedback: &link.Feedback{}}
	r := openRobot(t, ft, Rhino)
	require.NoError(t, r.Close())

	assert.False(t, r.SendVelocityCommand(context.Background(), 0.5, 0))
	assert.Empty(t, ft.overrides)
}

func TestApplyBrake_Fallback(t *testing.T) {
	ft := &fakeTransport{feedback: &link.Feedback{}}
	r := openRobot(t, ft, Rhino)

	require.NoError(t, r.ApplyBrake(context.Background()))
	require.True(t, r.SendVelocityCommand(context.Background(), 0, 0))

	require.Len(t, ft.overrides, 2)
	assert.Equal(t, ft.overrides[1], ft.overrides[0])
	assert.Equal(t, map[int]uint16{3: 1100, 1: 1500}, ft.overrides[0])
}

func TestApplyBrake_NoFeedback(t *testing.T) {
	ft := &fakeTransport{}
	r := openRobot(t, ft, Rhino)

	assert.ErrorIs(t, r.ApplyBrake(context.Background()), ErrNoFeedback)
	assert.Len(t, ft.overrides, 1)
}

func TestApplyBrake_BrakeChannel(t *testing.T) {
	cfg := Rhino
	cfg.Name = "braked"
	cfg.Brake = &ChannelSpec{Channel: 5, MinPWM: 1000, MaxPWM: 2000}

	ft := &fakeTransport{feedback: &link.Feedback{}}
	r := openRobot(t, ft, cfg)

	assert.ErrorIs(t, r.ApplyBrake(context.Background()), ErrBrakeNotSupported)
	assert.Empty(t, ft.overrides)
}

func TestClose(t *testing.T) {
	ft := &fakeTransport{releaseErr: errors.New("link down")}
	r := openRobot(t, ft, Rhino)

	err := r.Close()
	assert.Error(t, err)
	assert.Equal(t, []string{"liveness", "release", "close"}, ft.calls)
	assert.Equal(t, [][]int{{3, 1}}, ft.releases)

	// Second close is a no-op.
	assert.NoError(t, r.Close())
	assert.Equal(t, 1, ft.closes)
	assert.Len(t, ft.releases, 1)
}
