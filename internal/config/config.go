package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Directory backends.
const (
	DirectoryMemory   = "memory"
	DirectoryREST     = "rest"
	DirectoryPostgres = "postgres"
)

// Storage backends for the persisted selection.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Location modes.
const (
	LocationDenied = "denied"
	LocationStatic = "static"
	LocationGeoIP  = "geoip"
)

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "BLOCUS_"

// Config captures runtime configuration values for the client service.
type Config struct {
	HTTPAddress string        `env:"HTTP_ADDRESS" envDefault:":8090"`
	CORSOrigin  string        `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"5s"`

	DirectoryBackend string `env:"DIRECTORY_BACKEND" envDefault:"memory"`
	DirectoryURL     string `env:"DIRECTORY_URL"`
	DirectoryAPIKey  string `env:"DIRECTORY_API_KEY"`
	PostgresURL      string `env:"POSTGRES_URL"`

	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"data/blocus.db"`
	PersistDebounce time.Duration `env:"PERSIST_DEBOUNCE" envDefault:"250ms"`

	QueryStaleTime  time.Duration `env:"QUERY_STALE_TIME" envDefault:"5m"`
	QueryRetainTime time.Duration `env:"QUERY_RETAIN_TIME" envDefault:"30m"`
	QueryRetries    int           `env:"QUERY_RETRIES" envDefault:"2"`
	RetryBaseDelay  time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`

	LocationMode      string  `env:"LOCATION_MODE" envDefault:"denied"`
	FallbackLatitude  float64 `env:"FALLBACK_LATITUDE" envDefault:"46.603354"`
	FallbackLongitude float64 `env:"FALLBACK_LONGITUDE" envDefault:"1.888334"`
	StaticLatitude    float64 `env:"STATIC_LATITUDE"`
	StaticLongitude   float64 `env:"STATIC_LONGITUDE"`
	GeoIPURL          string  `env:"GEOIP_URL" envDefault:"http://ip-api.com/json/?fields=status,message,lat,lon"`

	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	GymEventsTopic string   `env:"GYM_EVENTS_TOPIC" envDefault:"gym_events"`
	ConsumerGroup  string   `env:"CONSUMER_GROUP_ID" envDefault:"blocus-cache-invalidator"`
	TelemetryTopic string   `env:"TELEMETRY_TOPIC"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load reads environment variables and applies defaults.
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom is Load over an explicit environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent combinations.
func (c Config) Validate() error {
	switch c.DirectoryBackend {
	case DirectoryMemory:
	case DirectoryREST:
		if c.DirectoryURL == "" {
			return fmt.Errorf("%sDIRECTORY_URL is required for the rest backend", EnvPrefix)
		}
	case DirectoryPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%sPOSTGRES_URL is required for the postgres backend", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown directory backend %q", c.DirectoryBackend)
	}

	switch c.StorageBackend {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.LocationMode {
	case LocationDenied, LocationStatic, LocationGeoIP:
	default:
		return fmt.Errorf("unknown location mode %q", c.LocationMode)
	}

	if c.QueryRetries < 0 {
		return fmt.Errorf("query retries must not be negative")
	}
	if c.QueryStaleTime > c.QueryRetainTime {
		return fmt.Errorf("query stale time %s exceeds retain time %s", c.QueryStaleTime, c.QueryRetainTime)
	}
	return nil
}
