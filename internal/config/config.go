// Package config provides the configuration schema, loader, and defaults
// for the fdalens MCP server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a [time.Duration] that unmarshals from YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the MCP server is exposed to its host.
type Transport string

const (
	// TransportStdio serves MCP over stdin/stdout. This is the default and
	// the mode AI-assistant hosts typically launch the binary in.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves MCP over the streamable-HTTP
	// transport, together with /healthz, /readyz and /metrics endpoints.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// Config is the root configuration structure for fdalens. It is loaded
// from a YAML file using [Load] or [LoadFromReader]; every field has a
// working default so the config file is optional.
type Config struct {
	Server ServerConfig `yaml:"server"`
	FDA    FDAConfig    `yaml:"fda"`
}

// ServerConfig holds transport and logging settings.
type ServerConfig struct {
	// Transport selects stdio or streamable-http. Default: stdio.
	Transport Transport `yaml:"transport"`

	// ListenAddr is the TCP address for streamable-http mode (e.g. ":8080").
	// Ignored for stdio.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. The --log-level flag overrides it.
	LogLevel LogLevel `yaml:"log_level"`
}

// FDAConfig holds settings for the outbound openFDA client.
type FDAConfig struct {
	// BaseURL overrides the openFDA host. Leave empty for the public API
	// (https://api.fda.gov); set in tests to point at a fixture server.
	BaseURL string `yaml:"base_url"`

	// APIKey is an optional openFDA API key, forwarded as the api_key
	// query parameter to raise the upstream rate quota.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each outbound request. Default: 30s.
	Timeout Duration `yaml:"timeout"`

	// MaxAttempts is the total number of attempts per call including the
	// first; only rate-limit and network failures are retried.
	// Range [1, 5]. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`
}

// Default returns a Config with all defaults applied, as used when no
// config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			LogLevel:  LogInfo,
		},
		FDA: FDAConfig{
			Timeout:     Duration(30 * time.Second),
			MaxAttempts: 3,
		},
	}
}
