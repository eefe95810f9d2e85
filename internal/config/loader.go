package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// maxAttemptsCap bounds the retry budget so a single tool call can never
// spend more than a handful of upstream requests.
const maxAttemptsCap = 5

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		// An empty file decodes to io.EOF; treat it as all-defaults.
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills empty fields with the values from [Default].
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = def.Server.Transport
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.FDA.Timeout == 0 {
		cfg.FDA.Timeout = def.FDA.Timeout
	}
	if cfg.FDA.MaxAttempts == 0 {
		cfg.FDA.MaxAttempts = def.FDA.MaxAttempts
	}
}

// Validate checks that cfg contains a coherent set of values. It returns
// a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == TransportStreamableHTTP && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required when transport is streamable-http"))
	}

	if cfg.FDA.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fda.timeout %s must not be negative", cfg.FDA.Timeout))
	}
	if cfg.FDA.MaxAttempts < 1 || cfg.FDA.MaxAttempts > maxAttemptsCap {
		errs = append(errs, fmt.Errorf("fda.max_attempts %d is out of range [1, %d]", cfg.FDA.MaxAttempts, maxAttemptsCap))
	}

	return errors.Join(errs...)
}
