package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for the resolver probe: which default
// backend to dial, how to authenticate, and the ambient service knobs
// (listen address, log level, shutdown grace period).
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Resolver ResolverConfig `koanf:"resolver"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// ResolverConfig describes the default backend cluster this probe talks to,
// and (if WriterAddr is set) the address it advertises when publishing.
type ResolverConfig struct {
	Addrs          []string      `koanf:"addrs"`
	Auth           string        `koanf:"auth"` // "anonymous", "krb5", "local"
	WriterAddr     string        `koanf:"writer_addr"`
	SendTimeout    time.Duration `koanf:"send_timeout"`
	HeartbeatEvery time.Duration `koanf:"heartbeat_every"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: NETIDX_RESOLVER_RESOLVER__ADDRS → resolver.addrs
	if err := k.Load(env.Provider("NETIDX_RESOLVER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "NETIDX_RESOLVER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "netidx-resolver-probe-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Resolver: ResolverConfig{
			Auth:           "anonymous",
			SendTimeout:    5 * time.Second,
			HeartbeatEvery: 30 * time.Second,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split a comma-separated env string into a slice, same as the single
	// env var -> slice field convention used for every []string field.
	if len(cfg.Resolver.Addrs) == 1 && strings.Contains(cfg.Resolver.Addrs[0], ",") {
		cfg.Resolver.Addrs = strings.Split(cfg.Resolver.Addrs[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Resolver.Addrs) == 0 {
		return fmt.Errorf("config: resolver.addrs is required")
	}
	switch c.Resolver.Auth {
	case "anonymous", "krb5", "local":
	default:
		return fmt.Errorf("config: resolver.auth must be one of anonymous, krb5, local (got %q)", c.Resolver.Auth)
	}
	if c.Resolver.SendTimeout <= 0 {
		return fmt.Errorf("config: resolver.send_timeout must be > 0 (got %s)", c.Resolver.SendTimeout)
	}
	if c.Resolver.HeartbeatEvery <= 0 {
		return fmt.Errorf("config: resolver.heartbeat_every must be > 0 (got %s)", c.Resolver.HeartbeatEvery)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}

// AuthMode maps the configured auth string to a backend.Auth value. Kept
// here rather than in package backend so backend stays free of any
// dependency on configuration parsing.
func (c *ResolverConfig) AuthMode() backend.Auth {
	switch c.Auth {
	case "krb5":
		return backend.AuthKrb5
	case "local":
		return backend.AuthLocal
	default:
		return backend.AuthAnonymous
	}
}
