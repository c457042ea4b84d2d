package cache

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Policy selects how handlers are shared between callers
type Policy string

const (
	// PolicyShared keeps one live handler per resource
	PolicyShared Policy = "shared"
	// PolicyPerCall builds a fresh handler per call, closed on release
	PolicyPerCall Policy = "per-call"
)

// Config is the yaml-facing cache configuration
type Config struct {
	Policy              Policy `yaml:"policy" env:"FILESTORE_CACHE_POLICY" env-default:"shared"`
	Size                int    `yaml:"size" env:"FILESTORE_CACHE_SIZE"`
	MaxConcurrentBuilds int64  `yaml:"max-concurrent-builds" env:"FILESTORE_CACHE_MAX_BUILDS"`
}

// Validate checks policy and bounds
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyShared, PolicyPerCall, "":
	default:
		return errors.Errorf("unknown cache policy %q", c.Policy)
	}
	if c.Size < 0 {
		return errors.New("cache size must not be negative")
	}
	if c.MaxConcurrentBuilds < 0 {
		return errors.New("max-concurrent-builds must not be negative")
	}
	return nil
}

// Option configures a HandlerCache
type Option func(*HandlerCache)

// WithConfig applies policy, size bound and build concurrency limit
func WithConfig(c Config) Option {
	return func(hc *HandlerCache) {
		if c.Policy != "" {
			hc.policy = c.Policy
		}
		hc.size = c.Size
		hc.maxBuilds = c.MaxConcurrentBuilds
	}
}

// WithLogger sets the logger
func WithLogger(log logr.Logger) Option {
	return func(hc *HandlerCache) {
		hc.log = log
	}
}

// WithRegisterer registers cache collectors with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(hc *HandlerCache) {
		hc.registerer = reg
	}
}
