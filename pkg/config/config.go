// Package config assembles the control plane's runtime configuration from
// process flags and environment variables. It has no raft/cluster settings
// to bind — only the host-connection, streaming, and storage knobs the rest
// of the tree reads at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/log"
	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/spf13/pflag"
)

// Config is the fully resolved set of knobs the control plane binary needs
// to construct its dependency graph (repository, transport, breaker,
// stream multiplexer, rpc listener).
type Config struct {
	// DataDir is where the bbolt repository file and any on-disk state live.
	DataDir string

	// ListenAddr is the address the serve command's HTTP listener (metrics
	// and health endpoints) binds.
	ListenAddr string

	// LogLevel and LogJSON control pkg/log.New.
	LogLevel log.Level
	LogJSON  bool

	// MasterKeyEnv names the environment variable pkg/credentials reads the
	// master encryption key from; only the variable name is held here, the
	// key material itself is never copied into Config.
	MasterKeyEnv string

	// Breaker tunes the per-host circuit breaker.
	Breaker breaker.Config

	// StreamMux tunes the log/stats stream multiplexer.
	StreamMux streammux.Config

	// HealthCheckInterval is how often the Connection Manager probes an
	// idle-but-registered host to detect it going unreachable.
	HealthCheckInterval time.Duration

	// GrantCacheTTL is how long pkg/permissions caches a resolved grant
	// before re-reading it from the repository.
	GrantCacheTTL time.Duration
}

// Default returns the built-in defaults, before flags or environment
// variables are applied.
func Default() Config {
	return Config{
		DataDir:             "./data",
		ListenAddr:          ":7070",
		LogLevel:            log.InfoLevel,
		LogJSON:             false,
		MasterKeyEnv:        "FLEETCTL_MASTER_KEY",
		Breaker:             breaker.DefaultConfig(),
		StreamMux:           streammux.Config{},
		HealthCheckInterval: 30 * time.Second,
		GrantCacheTTL:       30 * time.Second,
	}
}

// BindFlags registers the config's flags on fs, seeded with cfg's current
// values as defaults. Call Load after fs.Parse to fold environment
// variables in over whatever the user didn't set on the command line.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory for the repository database and state")
	fs.StringVar(&c.ListenAddr, "listen-addr", c.ListenAddr, "Address the control API listens on")
	fs.StringVar((*string)(&c.LogLevel), "log-level", string(c.LogLevel), "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "Output logs in JSON format")
	fs.StringVar(&c.MasterKeyEnv, "master-key-env", c.MasterKeyEnv, "Environment variable holding the credential master key")
	fs.IntVar(&c.Breaker.FailureThreshold, "breaker-failure-threshold", c.Breaker.FailureThreshold, "Consecutive failures before a host's breaker opens")
	fs.DurationVar(&c.Breaker.RecoveryTimeout, "breaker-recovery-timeout", c.Breaker.RecoveryTimeout, "Time an open breaker waits before probing again")
	fs.IntVar(&c.Breaker.SuccessThreshold, "breaker-success-threshold", c.Breaker.SuccessThreshold, "Consecutive successes in half-open before a breaker fully closes")
	fs.IntVar(&c.StreamMux.RingSize, "stream-ring-size", c.StreamMux.RingSize, "Replay buffer size per multiplexed stream (0 = package default)")
	fs.IntVar(&c.StreamMux.SubscriberQueueLen, "stream-subscriber-queue", c.StreamMux.SubscriberQueueLen, "Per-subscriber frame queue depth (0 = package default)")
	fs.DurationVar(&c.StreamMux.IdleCheckInterval, "stream-idle-check-interval", c.StreamMux.IdleCheckInterval, "How often idle streams are swept (0 = package default)")
	fs.DurationVar(&c.StreamMux.IdleTTL, "stream-idle-ttl", c.StreamMux.IdleTTL, "How long a subscriber-less stream lives before teardown (0 = package default)")
	fs.DurationVar(&c.HealthCheckInterval, "health-check-interval", c.HealthCheckInterval, "Interval between background host reachability probes")
	fs.DurationVar(&c.GrantCacheTTL, "grant-cache-ttl", c.GrantCacheTTL, "How long a resolved permission grant is cached before re-read")
}

// applyEnv folds the FLEETCTL_* environment variables over whatever
// BindFlags already resolved. A variable that is set overrides its field
// unconditionally, including a value given explicitly as a flag.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("FLEETCTL_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv("FLEETCTL_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := os.LookupEnv("FLEETCTL_LOG_LEVEL"); ok {
		c.LogLevel = log.Level(v)
	}
	if v, ok := os.LookupEnv("FLEETCTL_LOG_JSON"); ok {
		c.LogJSON = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("FLEETCTL_MASTER_KEY_ENV"); ok {
		c.MasterKeyEnv = v
	}
}

// Load folds environment variables over c and validates the result. It runs
// after flag parsing; an environment variable that is set takes precedence
// over both Default() and an explicitly given flag.
func (c *Config) Load() error {
	c.applyEnv()
	return c.Validate()
}

// Validate rejects a configuration that would fail later in a more
// confusing way (an empty listen address, a non-positive breaker
// threshold) rather than letting callers discover it mid-startup.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data-dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen-addr must not be empty")
	}
	switch c.LogLevel {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		return fmt.Errorf("config: invalid log-level %q", c.LogLevel)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("config: breaker-failure-threshold must be positive")
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("config: breaker-success-threshold must be positive")
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("config: health-check-interval must be positive")
	}
	return nil
}

// MasterKey reads the credential master key from the environment variable
// named by c.MasterKeyEnv. It is a thin accessor rather than a field so the
// key material is never held inside a Config value that might be logged or
// passed around wholesale.
func (c Config) MasterKey() (string, error) {
	v, ok := os.LookupEnv(c.MasterKeyEnv)
	if !ok || v == "" {
		return "", fmt.Errorf("config: environment variable %s is not set", c.MasterKeyEnv)
	}
	return v, nil
}
