// Package config provides the configuration for spawnpool hosts and the
// spawnpool CLI. A single Config describes the pool, its templates and the
// ambient logging, metrics and tracing settings.
//
// The configuration is organized into logical sections:
//   - Pool: tick cadence of the lifetime driver
//   - Templates: one entry per recyclable template
//   - Logging: zap logger settings
//   - Metrics: Prometheus exposition
//   - Tracing: OpenTelemetry spans
//   - Simulation: load shape used by `spawnpool simulate`
//
// Example usage:
//
//	cfg := config.NewConfig("arena")
//	cfg.Templates = append(cfg.Templates, config.TemplateConfig{
//	    ID: "bullet", Size: 64, Lifetime: config.Seconds(2),
//	})
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"math"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/logger"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Config is the root configuration structure.
type Config struct {
	// Name identifies the host or simulation run
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Pool settings shared by every template
	Pool PoolConfig `yaml:"pool" json:"pool" mapstructure:"pool"`

	// Templates registered at startup, in order
	Templates []TemplateConfig `yaml:"templates" json:"templates" mapstructure:"templates"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics configures Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry spans
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`

	// Simulation shapes the load generated by the CLI
	Simulation SimulationConfig `yaml:"simulation" json:"simulation" mapstructure:"simulation"`
}

// PoolConfig holds settings shared by all templates.
type PoolConfig struct {
	// TickInterval is how often the driver calls Manager.Tick
	TickInterval Duration `yaml:"tick_interval" json:"tick_interval" mapstructure:"tick_interval"`
}

// TemplateConfig describes one template. Lifetime accepts a number of
// seconds or a Go duration string.
type TemplateConfig struct {
	ID                     string   `yaml:"id" json:"id" mapstructure:"id"`
	Size                   int      `yaml:"size" json:"size" mapstructure:"size"`
	Lifetime               Duration `yaml:"lifetime" json:"lifetime" mapstructure:"lifetime"`
	RecycleWithoutLifetime bool     `yaml:"recycle_without_lifetime" json:"recycle_without_lifetime" mapstructure:"recycle_without_lifetime"`
	// Warm adds instances on top of Size right after registration
	Warm int `yaml:"warm" json:"warm" mapstructure:"warm"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`
	// Address the /metrics endpoint listens on, e.g. ":9090"
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// SimulationConfig shapes the synthetic load of `spawnpool simulate`.
type SimulationConfig struct {
	// Duration of the run
	Duration Duration `yaml:"duration" json:"duration" mapstructure:"duration"`
	// SpawnRate is the number of spawns per second across all templates
	SpawnRate float64 `yaml:"spawn_rate" json:"spawn_rate" mapstructure:"spawn_rate"`
	// Seed for placement generation; 0 picks a time-based seed
	Seed int64 `yaml:"seed" json:"seed" mapstructure:"seed"`
}

// NewConfig creates a Config with sensible defaults and no templates.
func NewConfig(name string) *Config {
	return &Config{
		Name: name,
		Pool: PoolConfig{
			TickInterval: Duration(100 * time.Millisecond),
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "spawnpool",
			Address:   ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "spawnpool",
			SampleRate:  0.1,
		},
		Simulation: SimulationConfig{
			Duration:  Duration(10 * time.Second),
			SpawnRate: 50,
		},
	}
}

// Validate checks required fields and ranges. It returns a config error
// naming the first offending field.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is required")
	}
	if c.Pool.TickInterval <= 0 {
		return invalid("pool.tick_interval must be positive").WithDetail("tick_interval", c.Pool.TickInterval.String())
	}
	seen := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if err := t.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid template").WithDetail("index", i)
		}
		if seen[t.ID] {
			return invalid("duplicate template id").WithDetail("template", t.ID)
		}
		seen[t.ID] = true
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return invalid("tracing.sample_rate must be between 0 and 1").WithDetail("sample_rate", c.Tracing.SampleRate)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return invalid("metrics.address is required when metrics are enabled")
	}
	if c.Simulation.SpawnRate <= 0 {
		return invalid("simulation.spawn_rate must be positive").WithDetail("spawn_rate", c.Simulation.SpawnRate)
	}
	if c.Simulation.Duration < 0 {
		return invalid("simulation.duration cannot be negative")
	}
	return nil
}

// Validate checks a single template entry.
func (t TemplateConfig) Validate() error {
	switch {
	case t.ID == "":
		return invalid("template id is required")
	case t.Size < 0:
		return invalid("template size cannot be negative").WithDetail("template", t.ID)
	case t.Lifetime < 0:
		return invalid("template lifetime cannot be negative").WithDetail("template", t.ID)
	case t.Warm < 0:
		return invalid("template warm count cannot be negative").WithDetail("template", t.ID)
	}
	return nil
}

// Template converts the entry into a pool.Template built by f.
func (t TemplateConfig) Template(f pool.Factory) pool.Template {
	return pool.Template{
		ID:                     t.ID,
		Size:                   t.Size,
		Lifetime:               t.Lifetime.Std(),
		RecycleWithoutLifetime: t.RecycleWithoutLifetime,
		Factory:                f,
	}
}

// Template returns the entry for id.
func (c *Config) Template(id string) (TemplateConfig, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateConfig{}, false
}

func invalid(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, msg)
}

// Duration is a time.Duration that decodes from either a number of seconds
// or a duration string such as "1500ms".
type Duration time.Duration

// Seconds returns a Duration of s seconds.
func Seconds(s float64) Duration {
	return Duration(s * float64(time.Second))
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalText renders d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ParseDuration converts v into a Duration. Numbers, and strings that parse
// as numbers, are seconds; other strings go through time.ParseDuration.
func ParseDuration(v interface{}) (Duration, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case Duration:
		return x, nil
	case time.Duration:
		return Duration(x), nil
	case string:
		if secs, err := cast.ToFloat64E(x); err == nil {
			return fromSeconds(secs)
		}
		d, err := cast.ToDurationE(x)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeConfig, "invalid duration").WithDetail("value", x)
		}
		return Duration(d), nil
	default:
		secs, err := cast.ToFloat64E(x)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeConfig, "invalid duration").WithDetail("value", v)
		}
		return fromSeconds(secs)
	}
}

func fromSeconds(secs float64) (Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > math.MaxInt64/float64(time.Second) {
		return 0, errors.New(errors.ErrorTypeConfig, "duration out of range").WithDetail("seconds", secs)
	}
	return Seconds(secs), nil
}
