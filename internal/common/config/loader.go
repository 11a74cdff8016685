// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment variables carrying credentials. Only Load reads them.
const (
	EnvServiceKey      = "DATA_GO_KR_API_KEY"
	EnvDriveCredential = "GOOGLE_AUTH_JSON"
	EnvMinIOAccessKey  = "MINIO_ACCESS_KEY"
	EnvMinIOSecretKey  = "MINIO_SECRET_KEY"
	EnvPostgresPass    = "DB_PASSWORD"
)

// Load reads configs/config.yaml (plus config.<env>.yaml), .env and the process
// environment. flags may be nil; when given, its values override the files.
func Load(flags *pflag.FlagSet) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	return load(v, flags, true)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string, flags *pflag.FlagSet) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return load(v, flags, false)
}

func load(v *viper.Viper, flags *pflag.FlagSet, search bool) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if search {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading base config: %w", err)
			}
		}

		env := os.Getenv("APP_ENVIRONMENT")
		if env == "" {
			env = "development"
		}
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		_ = v.MergeInConfig()
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"catalog":    "harvest.catalog_path",
	"workers":    "harvest.workers",
	"categories": "harvest.categories",
	"store":      "store.backend",
	"log-level":  "logging.level",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv fills credentials that are still empty after expansion.
func overrideFromEnv(cfg *Config) {
	if cfg.Credentials.ServiceKey == "" {
		cfg.Credentials.ServiceKey = os.Getenv(EnvServiceKey)
	}
	if cfg.Store.Drive.CredentialsJSON == "" {
		cfg.Store.Drive.CredentialsJSON = os.Getenv(EnvDriveCredential)
	}
	if cfg.Store.MinIO.AccessKey == "" {
		cfg.Store.MinIO.AccessKey = os.Getenv(EnvMinIOAccessKey)
	}
	if cfg.Store.MinIO.SecretKey == "" {
		cfg.Store.MinIO.SecretKey = os.Getenv(EnvMinIOSecretKey)
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv(EnvPostgresPass)
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "procurement-harvester"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Harvest.Workers == 0 {
		cfg.Harvest.Workers = 3
	}
	if cfg.Harvest.Timezone == "" {
		cfg.Harvest.Timezone = "Asia/Seoul"
	}
	if cfg.Harvest.CatalogPath == "" {
		cfg.Harvest.CatalogPath = "configs/catalog.json"
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30000
	}
	if cfg.HTTP.Pacing == 0 {
		cfg.HTTP.Pacing = 500
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "procurement-harvester/1.0"
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 1000
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10000
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "drive"
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 120000
	}
	if cfg.Lock.Prefix == "" {
		cfg.Lock.Prefix = "harvest:lock:"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 5
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.IndexPrefix == "" {
		cfg.Database.Elasticsearch.IndexPrefix = "procurement-"
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "ap-northeast-2"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Credentials.ServiceKey == "" {
		return fmt.Errorf("credentials.service_key is required (set %s)", EnvServiceKey)
	}
	if cfg.Harvest.Workers < 1 {
		return fmt.Errorf("harvest.workers must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.Harvest.Timezone); err != nil {
		return fmt.Errorf("harvest.timezone %q: %w", cfg.Harvest.Timezone, err)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	switch cfg.Store.Backend {
	case "memory":
	case "minio":
		if cfg.Store.MinIO.Endpoint == "" || cfg.Store.MinIO.Bucket == "" {
			return fmt.Errorf("store.minio.endpoint and store.minio.bucket are required")
		}
	case "drive":
		if cfg.Store.Drive.CredentialsJSON == "" {
			return fmt.Errorf("store.drive.credentials_json is required (set %s)", EnvDriveCredential)
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}

	switch cfg.Lock.Backend {
	case "local":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for lock.backend=redis")
		}
	default:
		return fmt.Errorf("lock.backend %q is not supported", cfg.Lock.Backend)
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" || cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required when enabled")
		}
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when enabled")
	}
	if cfg.Messaging.RabbitMQ.Enabled && cfg.Messaging.RabbitMQ.URL == "" {
		return fmt.Errorf("messaging.rabbitmq.url is required when enabled")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when enabled")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.Recipients) == 0) {
		return fmt.Errorf("notifications.ses.from_email and recipients are required when enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
