// Package config loads and defaults the broker's YAML configuration file,
// the way github.com/coredhcp/coredhcp/config loads a server config: a
// typed struct populated through viper, with default values for the
// optional fields. Environment variables are not consulted.
package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Credential is one (user, password) pair a service may lend out, and how
// many concurrent leases it may support.
type Credential struct {
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	NumConcurrent int    `mapstructure:"num_concurrent"`
}

// Service is the configuration for one named downstream service: its lease
// timeout and the credentials backing its pool.
type Service struct {
	LeaseTimeoutSecs int          `mapstructure:"lease_timeout_secs"`
	Credentials      []Credential `mapstructure:"credentials"`
}

// SSL carries the PEM files for TLS termination. A nil *SSL in Config means
// plain HTTP.
type SSL struct {
	PrivateKeyPEMFile    string `mapstructure:"private_key_pem_file"`
	CertificateChainFile string `mapstructure:"certificate_chain_file"`
}

// Config is the top-level configuration file shape.
type Config struct {
	ListenOn                 string             `mapstructure:"listen_on"`
	WebPath                  string             `mapstructure:"web_path"`
	Services                 map[string]Service `mapstructure:"services"`
	AccessTokens             []string           `mapstructure:"access_tokens"`
	SSL                      *SSL               `mapstructure:"ssl"`
	PersistentLeasesFilename string             `mapstructure:"persistent_leases_filename"`
	LogLevel                 string             `mapstructure:"log_level"`
	LogFile                  string             `mapstructure:"log_file"`
}

const (
	defaultListenOn         = "127.0.0.1:9992"
	defaultWebPath          = "/"
	defaultLeaseTimeoutSecs = 300
	defaultNumConcurrent    = 1
	defaultLogLevel         = "info"
)

// Load reads and defaults the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("listen_on", defaultListenOn)
	v.SetDefault("web_path", defaultWebPath)
	v.SetDefault("log_level", defaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	for name, svc := range cfg.Services {
		if svc.LeaseTimeoutSecs == 0 {
			svc.LeaseTimeoutSecs = defaultLeaseTimeoutSecs
		}
		for i, cred := range svc.Credentials {
			if cred.NumConcurrent == 0 {
				svc.Credentials[i].NumConcurrent = defaultNumConcurrent
			}
		}
		cfg.Services[name] = svc
	}
	if cfg.WebPath == "" {
		cfg.WebPath = defaultWebPath
	}
	if cfg.ListenOn == "" {
		cfg.ListenOn = defaultListenOn
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for name, svc := range cfg.Services {
		if len(svc.Credentials) == 0 {
			return fmt.Errorf("service %q has no credentials configured", name)
		}
		for _, cred := range svc.Credentials {
			if cred.User == "" {
				return fmt.Errorf("service %q has a credential with an empty user", name)
			}
		}
	}
	return nil
}
