package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steele123/meminject/injection"
)

// Config holds the tool configuration.
type Config struct {
	// Injection settings
	Injection InjectionConfig `yaml:"injection" json:"injection"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Duration wraps time.Duration so YAML configs can say "10s" instead of a
// nanosecond count.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// InjectionConfig selects the injection method and its tunables.
type InjectionConfig struct {
	// Method is "loadlibrary" or "manualmap".
	Method string `yaml:"method" json:"method"`
	// WaitTimeout bounds the wait on the remote thread.
	WaitTimeout Duration `yaml:"wait_timeout" json:"wait_timeout"`
	// FreeTransientAllocations releases staging buffers once the remote
	// thread signals. Disable for payloads that keep reading their
	// staging memory after the loader thread exits.
	FreeTransientAllocations bool `yaml:"free_transient_allocations" json:"free_transient_allocations"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Debug bool   `yaml:"debug" json:"debug"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns the conservative defaults: loader invocation, a
// finite wait, cleanup on.
func DefaultConfig() *Config {
	return &Config{
		Injection: InjectionConfig{
			Method:                   "loadlibrary",
			WaitTimeout:              Duration(injection.DefaultWaitTimeout),
			FreeTransientAllocations: true,
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file, layered over the
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the engine would choke on later.
func (c *Config) Validate() error {
	if _, err := injection.MethodByName(c.Injection.Method); err != nil {
		return err
	}
	if c.Injection.WaitTimeout < 0 {
		return fmt.Errorf("wait_timeout must not be negative")
	}
	return nil
}

// InjectionSettings maps the file-level settings onto the engine's config
// value.
func (c *Config) InjectionSettings() (injection.Config, error) {
	method, err := injection.MethodByName(c.Injection.Method)
	if err != nil {
		return injection.Config{}, err
	}
	return injection.Config{
		Method:                   method,
		WaitTimeout:              time.Duration(c.Injection.WaitTimeout),
		FreeTransientAllocations: c.Injection.FreeTransientAllocations,
	}, nil
}
