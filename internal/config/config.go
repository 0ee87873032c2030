// Package config loads donormap settings from defaults, an optional YAML
// file named by DONORMAP_CONFIG, and DONORMAP_-prefixed environment
// variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vbonduro/donormap/internal/domain"
)

const (
	envPrefix     = "DONORMAP_"
	envConfig     = "DONORMAP_CONFIG"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

type Config struct {
	ListenAddr    string `koanf:"listen_addr"`
	StoreBackend  string `koanf:"store_backend"`
	DBPath        string `koanf:"db_path"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	LogFile   string `koanf:"log_file"`

	// GeoLookupURL is the base URL of the IP geolocation service. Empty
	// disables server-side lookups.
	GeoLookupURL     string        `koanf:"geo_lookup_url"`
	GeoTimeout       time.Duration `koanf:"geo_timeout"`
	DefaultCenterLat float64       `koanf:"default_center_lat"`
	DefaultCenterLng float64       `koanf:"default_center_lng"`

	// SessionKey signs the session cookie. A random key is generated when
	// empty, so sessions do not survive a restart.
	SessionKey      string        `koanf:"session_key"`
	ViewIdleTimeout time.Duration `koanf:"view_idle_timeout"`

	IdentityUserHeader  string `koanf:"identity_user_header"`
	IdentityEmailHeader string `koanf:"identity_email_header"`
}

func Default() *Config {
	return &Config{
		ListenAddr:          ":8080",
		StoreBackend:        BackendSQLite,
		DBPath:              "/data/donormap.db",
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "donormap",
		LogLevel:            "info",
		LogFormat:           "json",
		GeoTimeout:          5 * time.Second,
		DefaultCenterLat:    20.5937,
		DefaultCenterLng:    78.9629,
		ViewIdleTimeout:     30 * time.Minute,
		IdentityUserHeader:  "X-Auth-User-Id",
		IdentityEmailHeader: "X-Auth-User-Email",
	}
}

func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// DONORMAP_GEO_TIMEOUT -> geo_timeout
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	switch c.StoreBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path must not be empty for the sqlite backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo_uri and mongo_database are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store_backend %q", c.StoreBackend))
	}
	if !c.DefaultCenter().Valid() {
		errs = append(errs, fmt.Errorf("default center (%g, %g) is out of range", c.DefaultCenterLat, c.DefaultCenterLng))
	}
	if c.GeoTimeout <= 0 {
		errs = append(errs, errors.New("geo_timeout must be positive"))
	}
	if c.ViewIdleTimeout < 0 {
		errs = append(errs, errors.New("view_idle_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) DefaultCenter() domain.Position {
	return domain.Position{Latitude: c.DefaultCenterLat, Longitude: c.DefaultCenterLng}
}
