package config

import (
	"gopkg.in/yaml.v3"
)

// Durations render as Go duration strings ("500ms") so printed config can
// be fed back to Load.

func (h HTTPConfig) MarshalYAML() (any, error) {
	return struct {
		Addr            string          `yaml:"addr"`
		ShutdownTimeout string          `yaml:"shutdownTimeout"`
		RateLimit       RateLimitConfig `yaml:"rateLimit"`
	}{h.Addr, h.ShutdownTimeout.String(), h.RateLimit}, nil
}

func (c CursorConfig) MarshalYAML() (any, error) {
	return struct {
		Driver        string `yaml:"driver"`
		NATSURL       string `yaml:"natsURL"`
		Bucket        string `yaml:"bucket"`
		SweepInterval string `yaml:"sweepInterval"`
	}{c.Driver, c.NATSURL, c.Bucket, c.SweepInterval.String()}, nil
}

func (p PollConfig) MarshalYAML() (any, error) {
	return struct {
		Interval    string `yaml:"interval"`
		MinWait     string `yaml:"minWait"`
		MaxWait     string `yaml:"maxWait"`
		DefaultWait int    `yaml:"defaultWait"`
		MaxSkip     int    `yaml:"maxSkip"`
	}{p.Interval.String(), p.MinWait.String(), p.MaxWait.String(), p.DefaultWait, p.MaxSkip}, nil
}

// YAML renders cfg as a YAML document.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
