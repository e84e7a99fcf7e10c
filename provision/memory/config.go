package memory

import (
	"fmt"
	"time"
)

// Config represents provisioner configuration
type Config struct {
	// Host names this provisioner; resources avoiding it are refused
	Host string `json:"host" yaml:"host"`
	// DefaultTimeout applies when Provision is called with a zero timeout
	DefaultTimeout time.Duration `json:"defaultTimeout" yaml:"defaultTimeout"`
}

// DefaultConfig returns the default provisioner configuration
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		DefaultTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("provision: invalid default timeout %v", c.DefaultTimeout)
	}
	return nil
}
