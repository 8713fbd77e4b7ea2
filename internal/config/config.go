// Package config loads service settings from an optional YAML file, an
// optional .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/models"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds every setting of the service and the CLI.
type Config struct {
	Port string `yaml:"port"`

	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Alerts AlertsConfig `yaml:"alerts"`
	Log    LogConfig    `yaml:"log"`

	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int `yaml:"rate_limit"`
}

type StoreConfig struct {
	Driver            string `yaml:"driver"` // "mongo" or "sqlite"
	MongoURI          string `yaml:"mongo_uri"`
	MongoDB           string `yaml:"mongo_db"`
	MongoTransactions bool   `yaml:"mongo_transactions"`
	SQLitePath        string `yaml:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// MQTTConfig is optional; alerts are not published when Broker is empty.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type AlertsConfig struct {
	// ApproachWindow is how many km before a threshold a warning starts.
	ApproachWindow int `yaml:"approach_window"`
	// ServiceInterval is added to the odometer when an oil change is recorded.
	ServiceInterval int `yaml:"service_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port: "8080",
		Store: StoreConfig{
			Driver:     DriverMongo,
			MongoDB:    "fleet",
			SQLitePath: "data/checklist.db",
		},
		Auth: AuthConfig{
			JWTSecret: "default-secret-key-change-in-production",
			JWTExpiry: 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			ClientID:    "fleet-checklist",
			TopicPrefix: "fleet/vehicles",
		},
		Alerts: AlertsConfig{
			ApproachWindow:  2000,
			ServiceInterval: 10000,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		RateLimit: 120,
	}
}

// Load reads the YAML file at path (skipped when empty or missing), then the
// .env file in the working directory, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.WithField("path", path).Debug("Config file not found, using defaults")
		case err != nil:
			return cfg, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.MongoURI, "MONGO_URI")
	setString(&c.Store.MongoDB, "MONGO_DB")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.MQTT.Broker, "MQTT_BROKER")
	setString(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&c.MQTT.TopicPrefix, "MQTT_TOPIC_PREFIX")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRY: %w", err)
		}
		c.Auth.JWTExpiry = d
	}
	if v := os.Getenv("MONGO_TRANSACTIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MONGO_TRANSACTIONS: %w", err)
		}
		c.Store.MongoTransactions = b
	}
	for key, dst := range map[string]*int{
		"ALERT_APPROACH_KM":   &c.Alerts.ApproachWindow,
		"SERVICE_INTERVAL_KM": &c.Alerts.ServiceInterval,
		"RATE_LIMIT":          &c.RateLimit,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the settings that would otherwise fail later at runtime.
func (c Config) Validate() error {
	if c.Store.Driver != DriverMongo && c.Store.Driver != DriverSQLite {
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Alerts.ApproachWindow < 0 {
		return fmt.Errorf("approach window must not be negative")
	}
	if c.Alerts.ServiceInterval <= 0 || c.Alerts.ServiceInterval > models.MaxServiceInterval {
		return fmt.Errorf("service interval must be between 1 and %d km", models.MaxServiceInterval)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// ConfigureLogging applies the log settings to the standard logrus logger.
func (c Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.WithField("level", c.Log.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
