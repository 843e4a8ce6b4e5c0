package config

import "fmt"

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaximumBytesBilled < 0 {
		return fmt.Errorf("maximumBytesBilled must not be negative, got %d", c.MaximumBytesBilled)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
