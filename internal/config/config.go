package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"slotbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendFile      = "file"
	BackendMemory    = "memory"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Booking    BookingConfig    `yaml:"booking"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Firestore  FirestoreConfig  `yaml:"firestore"`
	Local      LocalConfig      `yaml:"local"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BookingConfig struct {
	MaxCustomersPerSlot int           `yaml:"max_customers_per_slot"`
	Catalog             string        `yaml:"catalog"`
	TimeSlots           []string      `yaml:"time_slots"`
	SelectionTTL        time.Duration `yaml:"selection_ttl"`
}

// Labels resolves the configured catalog: explicit time_slots win over the
// named built-in catalog.
func (b BookingConfig) Labels() ([]string, error) {
	if len(b.TimeSlots) > 0 {
		return append([]string(nil), b.TimeSlots...), nil
	}
	labels, ok := models.BuiltinCatalog(b.Catalog)
	if !ok {
		return nil, fmt.Errorf("unknown catalog %q", b.Catalog)
	}
	return labels, nil
}

type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Fallback string `yaml:"fallback"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Collection      string `yaml:"collection"`
}

type LocalConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	ManagerChatIDs []int64 `yaml:"manager_chat_ids"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Booking.MaxCustomersPerSlot <= 0 {
		return errors.New("booking.max_customers_per_slot must be positive")
	}

	labels, err := c.Booking.Labels()
	if err != nil {
		return err
	}
	if _, err := models.NewCatalog(labels); err != nil {
		return err
	}

	if err := c.validateBackend(c.Store.Backend); err != nil {
		return err
	}
	if c.Store.Fallback != "" {
		if c.Store.Fallback == c.Store.Backend {
			return errors.New("store.fallback must differ from store.backend")
		}
		if err := c.validateBackend(c.Store.Fallback); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func (c *Config) validateBackend(backend string) error {
	switch backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo uri is required")
		}
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore project_id is required")
		}
	case BackendFile:
		if c.Local.Path == "" {
			return errors.New("local path is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", backend)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotbook"
	}

	if c.Booking.MaxCustomersPerSlot == 0 {
		c.Booking.MaxCustomersPerSlot = models.DefaultMaxCustomersPerSlot
	}
	if c.Booking.Catalog == "" {
		c.Booking.Catalog = models.CatalogQuarterHour
	}
	if c.Booking.SelectionTTL == 0 {
		c.Booking.SelectionTTL = models.DefaultSelectionTTL
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.Fallback = strings.ToLower(strings.TrimSpace(c.Store.Fallback))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/bookings.db"
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "slotbook"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "bookings"
	}
	if c.Firestore.Collection == "" {
		c.Firestore.Collection = "bookings"
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
