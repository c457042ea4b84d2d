package server

import (
	"flag"
	"log"
	"os"
	"strconv"

	"filestore/internal/application/utils"
	"filestore/internal/config"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

// Options are flags shared by every subcommand
type Options struct {
	ConfigPath  string
	GRPCAddr    string
	MetricsAddr string
	Retry       utils.RetryConfig
}

// NewOptions returns options with default retry settings
func NewOptions() *Options {
	return &Options{Retry: utils.DefaultRetryConfig()}
}

// AddFlags adds flags to the specified FlagSet
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&o.GRPCAddr, "grpc-addr", "", "gRPC server address (overrides config)")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", "", "Metrics HTTP address (overrides config)")
	fs.DurationVar(&o.Retry.MaxElapsed, "retry-timeout", o.Retry.MaxElapsed, "Give up retrying an unavailable server after this long")

	gofs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(gofs)
	fs.AddGoFlagSet(gofs)
}

// Config loads the configuration and applies flag overrides
func (o *Options) Config() (*config.Config, error) {
	cfg, err := config.NewConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.GRPCAddr != "" {
		cfg.Settings.GRPCAddr = o.GRPCAddr
	}
	if o.MetricsAddr != "" {
		cfg.Settings.MetricsAddr = o.MetricsAddr
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger builds the logger selected by the logger section
func Logger(cfg *config.Config) logr.Logger {
	if cfg.Log.Backend == config.LogBackendKlog {
		if cfg.Log.Level > 0 {
			fs := flag.NewFlagSet("klog-level", flag.ContinueOnError)
			klog.InitFlags(fs)
			_ = fs.Set("v", strconv.Itoa(cfg.Log.Level))
		}
		return klog.NewKlogr().WithName(cfg.App.Name)
	}
	stdr.SetVerbosity(cfg.Log.Level)
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName(cfg.App.Name)
}
