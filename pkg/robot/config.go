package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/rhinorover/rhino/pkg/link"
)

const DefaultConfigFile = "rhino.json"

// Defaults used when the config file leaves a field empty.
const (
	DefaultLogDir          = "logs"
	DefaultHz              = 10
	DefaultLivenessTimeout = 30 * time.Second
	DefaultFeedbackTimeout = 2 * time.Second
)

// ChannelSpec binds one control to an RC channel and its pulse range.
type ChannelSpec struct {
	Channel int `json:"channel" yaml:"channel"`
	MinPWM  int `json:"min_pwm" yaml:"min_pwm"`
	MaxPWM  int `json:"max_pwm" yaml:"max_pwm"`
}

// Validate checks the channel number and pulse range.
func (c ChannelSpec) Validate() error {
	if c.Channel < 1 || c.Channel > link.ChannelCount {
		return fmt.Errorf("channel %d out of range 1..%d", c.Channel, link.ChannelCount)
	}
	if c.MinPWM > c.MaxPWM {
		return fmt.Errorf("min_pwm %d > max_pwm %d", c.MinPWM, c.MaxPWM)
	}
	// Keep clear of the override sentinels.
	if c.MinPWM <= int(link.Release) || c.MaxPWM >= int(link.NoChange) {
		return fmt.Errorf("pulse range %d..%d must lie within %d..%d",
			c.MinPWM, c.MaxPWM, link.Release+1, link.NoChange-1)
	}
	return nil
}

// RobotConfig describes one vehicle type.
type RobotConfig struct {
	Name     string       `json:"name" yaml:"name"`
	Throttle ChannelSpec  `json:"throttle" yaml:"throttle"`
	Steering ChannelSpec  `json:"steering" yaml:"steering"`
	Brake    *ChannelSpec `json:"brake,omitempty" yaml:"brake,omitempty"`
}

// Validate checks every channel and that no two controls share a channel.
func (c RobotConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if err := c.Throttle.Validate(); err != nil {
		return fmt.Errorf("%w: %s throttle: %v", ErrInvalidConfig, c.Name, err)
	}
	if err := c.Steering.Validate(); err != nil {
		return fmt.Errorf("%w: %s steering: %v", ErrInvalidConfig, c.Name, err)
	}
	if c.Throttle.Channel == c.Steering.Channel {
		return fmt.Errorf("%w: %s throttle and steering share channel %d", ErrInvalidConfig, c.Name, c.Throttle.Channel)
	}
	if c.Brake != nil {
		if err := c.Brake.Validate(); err != nil {
			return fmt.Errorf("%w: %s brake: %v", ErrInvalidConfig, c.Name, err)
		}
		if c.Brake.Channel == c.Throttle.Channel || c.Brake.Channel == c.Steering.Channel {
			return fmt.Errorf("%w: %s brake shares channel %d", ErrInvalidConfig, c.Name, c.Brake.Channel)
		}
	}
	return nil
}

// clone returns a copy that shares no pointers with c.
func (c RobotConfig) clone() RobotConfig {
	if c.Brake != nil {
		b := *c.Brake
		c.Brake = &b
	}
	return c
}

// Duration is a time.Duration written as "2s" in config files.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the settings for driving one vehicle.
type Config struct {
	Connection      string        `json:"connection" yaml:"connection"`
	Baud            int           `json:"baud,omitempty" yaml:"baud,omitempty"`
	Robot           string        `json:"robot" yaml:"robot"`
	LogDir          string        `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	Hz              int           `json:"hz,omitempty" yaml:"hz,omitempty"`
	LivenessTimeout Duration      `json:"liveness_timeout,omitempty" yaml:"liveness_timeout,omitempty"`
	FeedbackTimeout Duration      `json:"feedback_timeout,omitempty" yaml:"feedback_timeout,omitempty"`
	Profiles        []RobotConfig `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// ApplyDefaults fills empty fields with package defaults.
func (c *Config) ApplyDefaults() {
	if c.Robot == "" {
		c.Robot = Rhino.Name
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.Hz <= 0 {
		c.Hz = DefaultHz
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = Duration(DefaultLivenessTimeout)
	}
	if c.FeedbackTimeout <= 0 {
		c.FeedbackTimeout = Duration(DefaultFeedbackTimeout)
	}
}

// Registry returns the built-in presets extended with the file's profiles.
func (c *Config) Registry() (*Registry, error) {
	r := Presets()
	for _, p := range c.Profiles {
		if err := r.Put(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Profile resolves the configured robot name.
func (c *Config) Profile() (RobotConfig, error) {
	r, err := c.Registry()
	if err != nil {
		return RobotConfig{}, err
	}
	return r.Lookup(c.Robot)
}

// Options converts the file settings into robot options.
func (c *Config) Options() Options {
	return Options{
		LogDir:          c.LogDir,
		Baud:            c.Baud,
		LivenessTimeout: time.Duration(c.LivenessTimeout),
		FeedbackTimeout: time.Duration(c.FeedbackTimeout),
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a JSON or YAML file, chosen by
// extension, and applies defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if isYAML(path) {
		err = yaml.UnmarshalStrict(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the given config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
