package ssi

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"

	"github.com/viant/ssi/internal/expand"
	"github.com/viant/ssi/policy"
	"github.com/viant/ssi/provision/memory"
	"github.com/viant/ssi/request"
	"github.com/viant/ssi/service/dispatcher"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. The
// zero value of a nested section inherits that package's defaults when loaded
// with LoadConfig.
type Config struct {
	Dispatcher dispatcher.Config `json:"dispatcher" yaml:"dispatcher"`
	Pool       request.Config    `json:"pool" yaml:"pool"`
	Provision  memory.Config     `json:"provision" yaml:"provision"`
	Tracing    TracingConfig     `json:"tracing" yaml:"tracing"`
	// Admission applies when no WithAdmission option is given.
	Admission policy.Policy `json:"admission" yaml:"admission"`
	// Verbosity sets the log level of the default logger.
	Verbosity int `json:"verbosity" yaml:"verbosity"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	// OutputFile receives spans; stdout when empty.
	OutputFile string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{
		Dispatcher: dispatcher.DefaultConfig(),
		Pool:       request.DefaultConfig(),
		Provision:  memory.DefaultConfig(),
		Tracing:    TracingConfig{ServiceName: "ssi"},
	}
}

// LoadConfig decodes YAML (or JSON) over the defaults after expanding
// ${env.NAME} references.
func LoadConfig(data []byte) (*Config, error) {
	ret := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expand.Env(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadConfigURL downloads and decodes a config from any afs supported location.
func LoadConfigURL(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download config %v: %w", URL, err)
	}
	return LoadConfig(data)
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Dispatcher.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("dispatcher.workers must be > 0"))
	}
	if c.Dispatcher.QueueBuffer < 0 {
		errs = append(errs, fmt.Errorf("dispatcher.queueBuffer must be >= 0"))
	}
	if c.Pool.MaxFree < 0 {
		errs = append(errs, fmt.Errorf("pool.maxFree must be >= 0"))
	}
	if err := c.Provision.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Admission.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		errs = append(errs, fmt.Errorf("tracing.serviceName is required when tracing is enabled"))
	}
	return errors.Join(errs...)
}
