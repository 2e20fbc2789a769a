package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides read by LoadViper, e.g.
// SPAWNPOOL_POOL_TICK_INTERVAL=250ms.
const EnvPrefix = "SPAWNPOOL"

var durationType = reflect.TypeOf(Duration(0))

// LoadViper layers NewConfig defaults, the YAML file at path (if path is not
// empty) and SPAWNPOOL_* environment variables, then validates the result.
// Templates can only come from the file.
func LoadViper(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig("spawnpool"))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("name", d.Name)
	v.SetDefault("pool.tick_interval", d.Pool.TickInterval.String())

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.address", d.Metrics.Address)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	v.SetDefault("simulation.duration", d.Simulation.Duration.String())
	v.SetDefault("simulation.spawn_rate", d.Simulation.SpawnRate)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
}

// durationHook decodes Duration fields through ParseDuration so the viper
// path accepts the same forms as the YAML path.
func durationHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	return ParseDuration(data)
}
