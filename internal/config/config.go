package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"filestore/internal/application/cache"
	"filestore/internal/infrastructure/repositories"

	"github.com/ilyakaznacheev/cleanenv"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Authentication types
const (
	AuthnTypeNone = "none"
	AuthnTypeTLS  = "tls"
)

// Server certificate verify modes
const (
	VerifyModeSkip          = "skip"
	VerifyModeCertsRequired = "certs-required"
	VerifyModeVerify        = "verify"
)

// Logger backends
const (
	LogBackendKlog = "klog"
	LogBackendStd  = "std"
)

type (
	// Config is the application configuration
	Config struct {
		App      `yaml:"app"`
		Settings `yaml:"settings"`
		Log      `yaml:"logger"`
		Authn    `yaml:"authn"`
		Store    repositories.Config `yaml:"store"`
		Cache    cache.Config        `yaml:"cache"`
		Roots    []RootMapping       `yaml:"roots"`
		Writer   WriterConfig        `yaml:"writer"`
	}

	// App identifies the binary
	App struct {
		Name    string `yaml:"name" env:"APP_NAME"`
		Version string `yaml:"version" env:"APP_VERSION"`
	}

	// Log selects verbosity and backend
	Log struct {
		Level   int    `yaml:"level" env:"LOG_LEVEL"`
		Backend string `yaml:"backend" env:"LOG_BACKEND"`
	}

	// Settings holds listen addresses and request limits
	Settings struct {
		GRPCAddr    string  `yaml:"grpc-addr" env:"GRPC_ADDR"`
		MetricsAddr string  `yaml:"metrics-addr" env:"METRICS_ADDR"`
		RateLimit   float64 `yaml:"rate-limit-rps" env:"RATE_LIMIT_RPS"`
		RateBurst   int     `yaml:"rate-limit-burst" env:"RATE_LIMIT_BURST"`
	}

	// Authn configures how CLI clients reach the server
	Authn struct {
		Type string   `yaml:"type" env:"AUTHN_TYPE"`
		TLS  TLSAuthn `yaml:"tls"`
	}

	// TLSAuthn holds the client certificate
	TLSAuthn struct {
		KeyFile  string    `yaml:"key-file" env:"TLS_KEY_FILE"`
		CertFile string    `yaml:"cert-file" env:"TLS_CERT_FILE"`
		Client   TLSClient `yaml:"client"`
	}

	// TLSClient controls server certificate checks
	TLSClient struct {
		Verify  string   `yaml:"verify" env:"TLS_CLIENT_VERIFY"`
		CAFiles []string `yaml:"ca-files" env:"TLS_CLIENT_CA_FILES"`
	}

	// RootMapping substitutes an actual root for a logical one
	RootMapping struct {
		Logical string `yaml:"logical"`
		Actual  string `yaml:"actual"`
	}

	// WriterConfig configures the array writer
	WriterConfig struct {
		BasePath string `yaml:"base-path" env:"FILESTORE_WRITER_BASE_PATH"`
	}
)

// NewConfig loads path (optional) then the environment over built-in defaults
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}

	cfg.App.Name = "filestore"
	cfg.App.Version = "v1.0.0"
	cfg.Log.Backend = LogBackendStd
	cfg.Settings.GRPCAddr = ":9090"
	cfg.Settings.MetricsAddr = ":9091"
	cfg.Settings.RateLimit = 1000
	cfg.Settings.RateBurst = 100
	cfg.Authn.Type = AuthnTypeNone
	cfg.Authn.TLS.Client.Verify = VerifyModeSkip
	cfg.Store.Type = repositories.RepositoryTypeMemory
	cfg.Cache.Policy = cache.PolicyShared

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Settings.GRPCAddr == "" {
		return fmt.Errorf("grpc address is required")
	}
	if c.Settings.RateLimit < 0 || c.Settings.RateBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	switch c.Log.Backend {
	case LogBackendKlog, LogBackendStd, "":
	default:
		return fmt.Errorf("unknown logger backend: %s", c.Log.Backend)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config validation failed: %w", err)
	}
	for i, r := range c.Roots {
		if strings.TrimSpace(r.Logical) == "" || strings.TrimSpace(r.Actual) == "" {
			return fmt.Errorf("roots[%d]: logical and actual must both be set", i)
		}
	}
	return nil
}

// GetTransportCredentials returns client credentials for dialing the server
func (c *Config) GetTransportCredentials() (credentials.TransportCredentials, error) {
	authType := c.Authn.Type
	if authType == "" {
		authType = AuthnTypeNone
	}

	switch authType {
	case AuthnTypeNone:
		return insecure.NewCredentials(), nil

	case AuthnTypeTLS:
		tlsConfig := &tls.Config{}

		if c.Authn.TLS.CertFile != "" && c.Authn.TLS.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(c.Authn.TLS.CertFile, c.Authn.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		verifyMode := c.Authn.TLS.Client.Verify
		if verifyMode == "" {
			verifyMode = VerifyModeSkip
		}

		switch verifyMode {
		case VerifyModeSkip:
			tlsConfig.InsecureSkipVerify = true
		case VerifyModeCertsRequired:
			tlsConfig.InsecureSkipVerify = true
			if len(c.Authn.TLS.Client.CAFiles) > 0 {
				pool, err := loadCAPool(c.Authn.TLS.Client.CAFiles)
				if err != nil {
					return nil, err
				}
				tlsConfig.RootCAs = pool
			}
		case VerifyModeVerify:
			if len(c.Authn.TLS.Client.CAFiles) == 0 {
				return nil, fmt.Errorf("CA certificates are required for verify mode")
			}
			pool, err := loadCAPool(c.Authn.TLS.Client.CAFiles)
			if err != nil {
				return nil, err
			}
			tlsConfig.RootCAs = pool
		default:
			return nil, fmt.Errorf("unknown client verify mode: %s", verifyMode)
		}
		return credentials.NewTLS(tlsConfig), nil

	default:
		return nil, fmt.Errorf("unknown authentication type: %s", authType)
	}
}

func loadCAPool(files []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, caFile := range files {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate %s: %w", caFile, err)
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to add CA certificate %s to pool", caFile)
		}
	}
	return pool, nil
}
