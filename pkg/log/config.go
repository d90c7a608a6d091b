package log

import (
	"fmt"
	"strings"
)

// OutputConfig selects one output sink.
type OutputConfig struct {
	// Type is console, file or null.
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	// Path is required for file outputs.
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

// Config declares a logger.
type Config struct {
	Level            string         `json:"level" yaml:"level" mapstructure:"level"`
	Format           string         `json:"format" yaml:"format" mapstructure:"format"`
	Outputs          []OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs"`
	RedactKeys       []string       `json:"redactKeys,omitempty" yaml:"redactKeys,omitempty" mapstructure:"redactKeys"`
	SampleInitial    int            `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty" mapstructure:"sampleInitial"`
	SampleThereafter int            `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty" mapstructure:"sampleThereafter"`
}

// ApplyConfig builds a Logger from cfg. Unknown formats and output types
// are errors; an empty Outputs list means console.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts = append(opts, WithFormatter(&TextFormatter{}))
	case "json":
		opts = append(opts, WithFormatter(&JSONFormatter{}))
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	for _, oc := range cfg.Outputs {
		switch strings.ToLower(oc.Type) {
		case "", "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "null":
			opts = append(opts, WithOutput(NullOutput{}))
		case "file":
			if oc.Path == "" {
				return nil, fmt.Errorf("log: file output requires a path")
			}
			out, err := NewFileOutput(oc.Path)
			if err != nil {
				return nil, fmt.Errorf("log: open %s: %w", oc.Path, err)
			}
			opts = append(opts, WithOutput(out))
		default:
			return nil, fmt.Errorf("log: unknown output type %q", oc.Type)
		}
	}
	if len(cfg.RedactKeys) > 0 {
		opts = append(opts, WithRedactions(cfg.RedactKeys...))
	}
	if cfg.SampleThereafter > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleThereafter))
	}
	return NewLogger(opts...), nil
}
