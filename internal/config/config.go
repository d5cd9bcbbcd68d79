// Package config loads the daemon configuration.
//
// Values are layered: built-in defaults, then the TOML file, then a .env
// file, then the process environment. Later layers win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Default file locations.
const (
	DefaultFile   = "walkthrough.toml"
	DefaultDotEnv = ".env"
)

// Routing timeout bounds.
const (
	MinRoutingTimeout = time.Second
	MaxRoutingTimeout = 60 * time.Second
)

// Geocoder names.
const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

// Duration is a time.Duration written as "12s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the daemon configuration.
type Config struct {
	Env       string          `toml:"env"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Routing   RoutingConfig   `toml:"routing"`
	Geocoding GeocodingConfig `toml:"geocoding"`
	Backend   BackendConfig   `toml:"backend"`
	Location  LocationConfig  `toml:"location"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig configures the local API.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// GeocodingRatePerMinute caps the endpoints that hit the geocoder.
	GeocodingRatePerMinute int `toml:"geocoding_rate_per_minute"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// RoutingConfig configures the OpenRouteService client.
type RoutingConfig struct {
	BaseURL  string   `toml:"base_url"`
	APIKey   string   `toml:"api_key"`
	Timeout  Duration `toml:"timeout"`
	Language string   `toml:"language"`
}

// GeocodingConfig selects and configures the geocoder.
type GeocodingConfig struct {
	Provider      string `toml:"provider"`
	NominatimURL  string `toml:"nominatim_url"`
	UserAgent     string `toml:"user_agent"`
	Language      string `toml:"language"`
	GoogleAPIKey  string `toml:"google_api_key"`
	GoogleBaseURL string `toml:"google_base_url"`
}

// BackendConfig configures the backend client.
type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// LocationConfig configures the device location bridge.
type LocationConfig struct {
	// MaxAge is how long a reported fix stays usable.
	MaxAge Duration `toml:"max_age"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: "development",
		Server: ServerConfig{
			Addr:                   "127.0.0.1:8787",
			ReadTimeout:            Duration{15 * time.Second},
			WriteTimeout:           Duration{30 * time.Second},
			ShutdownTimeout:        Duration{10 * time.Second},
			GeocodingRatePerMinute: 30,
		},
		Log: LogConfig{Level: "info"},
		Routing: RoutingConfig{
			BaseURL:  "https://api.openrouteservice.org",
			Timeout:  Duration{12 * time.Second},
			Language: "fr",
		},
		Geocoding: GeocodingConfig{
			Provider:     GeocoderNominatim,
			NominatimURL: "https://nominatim.openstreetmap.org",
			UserAgent:    "WalkThroughApp/1.0",
		},
		Backend: BackendConfig{
			Timeout: Duration{10 * time.Second},
		},
		Location: LocationConfig{
			MaxAge: Duration{2 * time.Minute},
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load builds the configuration. An empty file defaults to $WALK_CONFIG,
// then DefaultFile; an empty dotenv defaults to DefaultDotEnv. Default
// files may be missing, explicitly named ones may not.
func Load(file, dotenv string) (Config, error) {
	cfg := Default()

	explicit := file != ""
	if file == "" {
		file = os.Getenv("WALK_CONFIG")
		explicit = file != ""
	}
	if file == "" {
		file = DefaultFile
	}
	if _, err := toml.DecodeFile(file, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("decoding config file %s: %w", file, err)
		}
	}

	explicitEnv := dotenv != ""
	if dotenv == "" {
		dotenv = DefaultDotEnv
	}
	fileEnv, err := godotenv.Read(dotenv)
	if err != nil {
		if explicitEnv || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", dotenv, err)
		}
		fileEnv = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("WALK_ENV", &c.Env)
	str("WALK_SERVER_ADDR", &c.Server.Addr)
	integer("WALK_GEOCODING_RATE_PER_MINUTE", &c.Server.GeocodingRatePerMinute)
	str("WALK_LOG_LEVEL", &c.Log.Level)
	boolean("WALK_LOG_PRETTY", &c.Log.Pretty)
	str("WALK_ORS_BASE_URL", &c.Routing.BaseURL)
	str("WALK_ORS_API_KEY", &c.Routing.APIKey)
	duration("WALK_ROUTING_TIMEOUT", &c.Routing.Timeout)
	str("WALK_ROUTING_LANGUAGE", &c.Routing.Language)
	str("WALK_GEOCODER", &c.Geocoding.Provider)
	str("WALK_NOMINATIM_URL", &c.Geocoding.NominatimURL)
	str("WALK_GEOCODING_LANGUAGE", &c.Geocoding.Language)
	str("WALK_GOOGLE_MAPS_API_KEY", &c.Geocoding.GoogleAPIKey)
	str("WALK_BACKEND_URL", &c.Backend.BaseURL)
	duration("WALK_BACKEND_TIMEOUT", &c.Backend.Timeout)
	duration("WALK_LOCATION_MAX_AGE", &c.Location.MaxAge)
	boolean("OTEL_ENABLED", &c.Telemetry.Enabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)

	return errors.Join(errs...)
}

// Validate checks required values and clamps the routing timeout into
// [MinRoutingTimeout, MaxRoutingTimeout].
func (c *Config) Validate() error {
	var errs []error

	if c.Routing.APIKey == "" {
		errs = append(errs, errors.New("routing.api_key is required"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Geocoding.Provider {
	case GeocoderNominatim:
	case GeocoderGoogle:
		if c.Geocoding.GoogleAPIKey == "" {
			errs = append(errs, errors.New("geocoding.google_api_key is required with the google geocoder"))
		}
	default:
		errs = append(errs, fmt.Errorf("geocoding.provider: unknown geocoder %q", c.Geocoding.Provider))
	}

	switch {
	case c.Routing.Timeout.Duration < MinRoutingTimeout:
		c.Routing.Timeout.Duration = MinRoutingTimeout
	case c.Routing.Timeout.Duration > MaxRoutingTimeout:
		c.Routing.Timeout.Duration = MaxRoutingTimeout
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, info when it is invalid.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
