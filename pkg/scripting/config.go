package scripting

import (
	"fmt"
	"time"
)

// Security levels restrict what scripts may reach.
const (
	SecurityLevelStrict     = "strict"
	SecurityLevelStandard   = "standard"
	SecurityLevelPermissive = "permissive"
)

// Config configures the script engine
type Config struct {
	// ScriptsDir is the directory relative script paths are resolved against
	ScriptsDir string `json:"scripts_dir" mapstructure:"scripts_dir"`

	// Timeout bounds a single evaluation
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// SecurityLevel defines security restrictions (strict, standard, permissive)
	SecurityLevel string `json:"security_level" mapstructure:"security_level"`

	// References lists the built-in reference providers to install (core, console, encoding).
	// Providers contributed by automation surfaces are always installed when allowed.
	References []string `json:"references,omitempty" mapstructure:"references"`

	// PoolSize is the maximum number of pooled runtimes for stateless evaluation
	PoolSize int `json:"pool_size" mapstructure:"pool_size"`

	// MaxReuseCount is how many times a pooled runtime is reused before recreation
	MaxReuseCount int `json:"max_reuse_count" mapstructure:"max_reuse_count"`
}

// DefaultReferencesByLevel defines default built-in references for each security level
var DefaultReferencesByLevel = map[string][]string{
	SecurityLevelStrict:     {"core"},
	SecurityLevelStandard:   {"core", "console", "encoding"},
	SecurityLevelPermissive: {"core", "console", "encoding"},
}

// DefaultConfig returns a configuration with defaults applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults sets default values for configuration fields
func (c *Config) ApplyDefaults() {
	if c.ScriptsDir == "" {
		c.ScriptsDir = "."
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SecurityLevel == "" {
		c.SecurityLevel = SecurityLevelStandard
	}
	if c.References == nil {
		c.References = DefaultReferencesByLevel[c.SecurityLevel]
	}
	if c.PoolSize == 0 {
		c.PoolSize = 8
	}
	if c.MaxReuseCount == 0 {
		c.MaxReuseCount = 500
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.SecurityLevel != SecurityLevelStrict &&
		c.SecurityLevel != SecurityLevelStandard &&
		c.SecurityLevel != SecurityLevelPermissive {
		return fmt.Errorf("invalid security level: %s", c.SecurityLevel)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative")
	}
	return nil
}
