package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Resolver: ResolverConfig{
			Addrs:          []string{"localhost:4564"},
			Auth:           "anonymous",
			SendTimeout:    5 * time.Second,
			HeartbeatEvery: 30 * time.Second,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty resolver.addrs")
	}
}

func TestValidate_InvalidAuth(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.Auth = "oauth"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown resolver.auth")
	}
}

func TestValidate_SendTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.SendTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for send_timeout = 0")
	}
}

func TestValidate_HeartbeatEveryZero(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.HeartbeatEvery = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat_every = 0")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestAuthMode(t *testing.T) {
	cases := []struct {
		auth string
		want backend.Auth
	}{
		{"anonymous", backend.AuthAnonymous},
		{"krb5", backend.AuthKrb5},
		{"local", backend.AuthLocal},
	}
	for _, c := range cases {
		cfg := validConfig()
		cfg.Resolver.Auth = c.auth
		if got := cfg.Resolver.AuthMode(); got != c.want {
			t.Errorf("AuthMode(%q) = %v, want %v", c.auth, got, c.want)
		}
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
resolver:
  addrs:
    - "localhost:4564"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideWriterAddr(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("NETIDX_RESOLVER_RESOLVER__WRITER_ADDR", "10.0.0.5:5000")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Resolver.WriterAddr != "10.0.0.5:5000" {
		t.Errorf("expected writer_addr from env, got %q", cfg.Resolver.WriterAddr)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("NETIDX_RESOLVER_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvEmptyAddrsFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("NETIDX_RESOLVER_RESOLVER__ADDRS", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for empty resolver.addrs via env")
	}
}
