package robot

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in vehicle profiles.
var (
	Rhino = RobotConfig{
		Name:     "rhino",
		Throttle: ChannelSpec{Channel: 3, MinPWM: 1100, MaxPWM: 1900},
		Steering: ChannelSpec{Channel: 1, MinPWM: 1100, MaxPWM: 1900},
	}

	Hound = RobotConfig{
		Name:     "hound",
		Throttle: ChannelSpec{Channel: 3, MinPWM: 1500, MaxPWM: 1900},
		Steering: ChannelSpec{Channel: 1, MinPWM: 1100, MaxPWM: 1900},
	}
)

// Registry holds robot profiles by name. Names are case-insensitive.
type Registry struct {
	profiles map[string]RobotConfig
}

// NewRegistry returns a registry holding the given profiles.
func NewRegistry(profiles ...RobotConfig) (*Registry, error) {
	r := &Registry{profiles: make(map[string]RobotConfig, len(profiles))}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Presets returns a new registry with the built-in profiles.
func Presets() *Registry {
	r, err := NewRegistry(Rhino, Hound)
	if err != nil {
		panic(err)
	}
	return r
}

// Add registers a profile. It fails if the name is taken.
func (r *Registry) Add(cfg RobotConfig) error {
	if _, ok := r.profiles[key(cfg.Name)]; ok {
		return fmt.Errorf("%w: duplicate profile %q", ErrInvalidConfig, cfg.Name)
	}
	return r.Put(cfg)
}

// Put registers a profile, replacing any profile with the same name.
func (r *Registry) Put(cfg RobotConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.profiles[key(cfg.Name)] = cfg.clone()
	return nil
}

// Lookup returns the profile with the given name.
func (r *Registry) Lookup(name string) (RobotConfig, error) {
	cfg, ok := r.profiles[key(name)]
	if !ok {
		return RobotConfig{}, fmt.Errorf("%w: %q (have %s)", ErrUnknownProfile, name, strings.Join(r.Names(), ", "))
	}
	return cfg.clone(), nil
}

// Names returns the registered profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
