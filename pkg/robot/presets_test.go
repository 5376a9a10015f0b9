package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	r := Presets()
	assert.Equal(t, []string{"hound", "rhino"}, r.Names())

	rhino, err := r.Lookup("rhino")
	require.NoError(t, err)
	assert.Equal(t, ChannelSpec{Channel: 3, MinPWM: 1100, MaxPWM: 1900}, rhino.Throttle)
	assert.Equal(t, ChannelSpec{Channel: 1, MinPWM: 1100, MaxPWM: 1900}, rhino.Steering)
	assert.Nil(t, rhino.Brake)

	hound, err := r.Lookup("HOUND")
	require.NoError(t, err)
	assert.Equal(t, 1500, hound.Throttle.MinPWM)
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := Presets().Lookup("tank")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := Presets()
	assert.ErrorIs(t, r.Add(Rhino), ErrInvalidConfig)

	changed := Rhino
	changed.Throttle.MaxPWM = 1800
	require.NoError(t, r.Put(changed))

	got, err := r.Lookup("rhino")
	require.NoError(t, err)
	assert.Equal(t, 1800, got.Throttle.MaxPWM)

	// Built-ins are untouched.
	assert.Equal(t, 1900, Rhino.Throttle.MaxPWM)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	_, err := NewRegistry(RobotConfig{Name: "broken"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	cfg := Rhino
	cfg.Name = "braked"
	cfg.Brake = &ChannelSpec{Channel: 5, MinPWM: 1000, MaxPWM: 2000}

	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	got, err := r.Lookup("braked")
	require.NoError(t, err)
	got.Brake.Channel = 6

	again, err := r.Lookup("braked")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Brake.Channel)
}
