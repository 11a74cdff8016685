// internal/common/config/config.go
package config

import (
	"fmt"

	"procurement-harvester/internal/common/logger"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Harvest       HarvestConfig      `mapstructure:"harvest"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Retry         RetryConfig        `mapstructure:"retry"`
	Store         StoreConfig        `mapstructure:"store"`
	Lock          LockConfig         `mapstructure:"lock"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Messaging     MessagingConfig    `mapstructure:"messaging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Tracing       TracingConfig      `mapstructure:"tracing"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Credentials   CredentialsConfig  `mapstructure:"credentials"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// HarvestConfig controls the pipeline shape.
type HarvestConfig struct {
	Workers     int      `mapstructure:"workers"`
	Timezone    string   `mapstructure:"timezone"`
	CatalogPath string   `mapstructure:"catalog_path"`
	Categories  []string `mapstructure:"categories"` // empty means every catalog entry
}

type HTTPConfig struct {
	Timeout   int    `mapstructure:"timeout_ms"`
	Pacing    int    `mapstructure:"pacing_ms"` // minimum spacing between requests of one fetcher
	UserAgent string `mapstructure:"user_agent"`
}

type RetryConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	InitialDelay int     `mapstructure:"initial_delay_ms"`
	MaxDelay     int     `mapstructure:"max_delay_ms"`
	Multiplier   float64 `mapstructure:"multiplier"`
}

// --- Remote store ---
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // minio | drive | memory
	MinIO   MinIOConfig `mapstructure:"minio"`
	Drive   DriveConfig `mapstructure:"drive"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type DriveConfig struct {
	FolderID        string `mapstructure:"folder_id"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type LockConfig struct {
	Backend string `mapstructure:"backend"` // local | redis
	TTL     int    `mapstructure:"ttl_ms"`
	Prefix  string `mapstructure:"prefix"`
}

// --- Optional sinks ---
type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	IndexPrefix string   `mapstructure:"index_prefix"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MessagingConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// NotificationConfig holds settings for the run notification.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CredentialsConfig carries opaque secrets. They are filled from the environment
// and never logged.
type CredentialsConfig struct {
	ServiceKey string `mapstructure:"service_key"`
}

// String renders the configuration with secrets masked.
func (c Config) String() string {
	return fmt.Sprintf(
		"app=%s env=%s workers=%d store=%s lock=%s pacing=%dms timeout=%dms serviceKey=%s",
		c.App.Name, c.App.Environment, c.Harvest.Workers, c.Store.Backend, c.Lock.Backend,
		c.HTTP.Pacing, c.HTTP.Timeout, logger.Redact(c.Credentials.ServiceKey),
	)
}
