// Package config loads service configuration from the environment, an optional .env file,
// an optional config file and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName                 string `mapstructure:"app_name" validate:"required"`
	Port                    int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel                string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	PrettyLogs              bool   `mapstructure:"pretty_logs"`
	HTTPReadTimeoutSeconds  int    `mapstructure:"http_server_read_timeout_seconds" validate:"min=0"`
	HTTPWriteTimeoutSeconds int    `mapstructure:"http_server_write_timeout_seconds" validate:"min=0"`
	ShutdownTimeoutSeconds  int    `mapstructure:"shutdown_timeout_seconds" validate:"min=1"`
	StartupMaxAttempts      int    `mapstructure:"startup_max_attempts" validate:"min=1"`
	TracingEnabled          bool   `mapstructure:"tracing_enabled"`

	// Tracing (OTLP collector). No endpoint means spans are dropped.
	TracingEndpoint string        `mapstructure:"tracing_endpoint"`
	TracingProtocol string        `mapstructure:"tracing_protocol" validate:"oneof=grpc http"`
	TracingInsecure bool          `mapstructure:"tracing_insecure"`
	TracingTimeout  time.Duration `mapstructure:"tracing_timeout"`

	// Registry (Datasette)
	RegistryEndpoint string        `mapstructure:"registry_endpoint" validate:"required,url"`
	RegistryDatabase string        `mapstructure:"registry_database" validate:"required"`
	RegistryCacheTTL time.Duration `mapstructure:"registry_cache_ttl"`
	RegistryMaxPages int           `mapstructure:"registry_max_pages" validate:"min=1"`

	// Graph building
	SchemaDir            string   `mapstructure:"schema_dir"`
	FileNumberPrefixes   []string `mapstructure:"expansion_file_number_prefixes" validate:"min=1,dive,required"`
	ExpansionChunkSize   int      `mapstructure:"expansion_chunk_size" validate:"min=1"`
	ExpansionConcurrency int      `mapstructure:"expansion_concurrency" validate:"min=1"`
	StubMaxRounds        int      `mapstructure:"stub_max_rounds" validate:"min=1"`
	IgnoreMiddleInitial  bool     `mapstructure:"dedup_ignore_middle_initial"`
	AutoPublish          bool     `mapstructure:"auto_publish"`

	// Redis (response cache)
	RedisEnabled  bool   `mapstructure:"redis_enabled"`
	RedisHost     string `mapstructure:"redis_host" validate:"required_if=RedisEnabled true"`
	RedisPort     int    `mapstructure:"redis_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`

	// PostgreSQL (snapshots)
	DatabaseEnabled             bool          `mapstructure:"db_enabled"`
	DatabaseHost                string        `mapstructure:"db_host" validate:"required_if=DatabaseEnabled true"`
	DatabasePort                int           `mapstructure:"db_port"`
	DatabaseUserName            string        `mapstructure:"db_user_name"`
	DatabasePassword            string        `mapstructure:"db_password"`
	DatabaseName                string        `mapstructure:"db_name"`
	DatabaseSSLMode             string        `mapstructure:"db_ssl_mode"`
	DatabaseMaxOpenConns        int           `mapstructure:"db_max_open_conns"`
	DatabaseMaxIdleConns        int           `mapstructure:"db_max_idle_conns"`
	DatabaseConnMaxLifetime     time.Duration `mapstructure:"db_conn_max_lifetime"`
	DatabaseMigrationFolderPath string        `mapstructure:"db_migration_folder_path"`
	DatabaseMigrationVersion    int           `mapstructure:"db_migration_version" validate:"min=0"`

	// Kafka (graph events)
	KafkaEnabled      bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers      []string `mapstructure:"kafka_brokers" validate:"required_if=KafkaEnabled true"`
	KafkaOutputTopic  string   `mapstructure:"kafka_output_topic"`
	KafkaBatchSize    int      `mapstructure:"kafka_batch_size"`
	KafkaBatchTimeout int      `mapstructure:"kafka_batch_timeout_ms"`
	KafkaRequiredAcks int      `mapstructure:"kafka_required_acks"`
	KafkaCompression  string   `mapstructure:"kafka_compression" validate:"oneof=snappy gzip lz4 zstd none"`

	// Graph Database (Memgraph)
	GraphDBEnabled     bool   `mapstructure:"graph_db_enabled"`
	GraphDBScheme      string `mapstructure:"graph_db_scheme" validate:"oneof=bolt bolt+s neo4j neo4j+s"`
	GraphDBHost        string `mapstructure:"graph_db_host" validate:"required_if=GraphDBEnabled true"`
	GraphDBPort        int    `mapstructure:"graph_db_port"`
	GraphDBUser        string `mapstructure:"graph_db_user"`
	GraphDBPassword    string `mapstructure:"graph_db_password"`
	GraphDBDatabase    string `mapstructure:"graph_db_database"`
	GraphDBMaxPoolSize int    `mapstructure:"graph_db_max_pool_size" validate:"gte=0"`

	// Contracts (Socrata open data)
	ContractsEnabled      bool   `mapstructure:"contracts_enabled"`
	ContractsBaseURL      string `mapstructure:"contracts_base_url" validate:"required_if=ContractsEnabled true"`
	ContractsDataset      string `mapstructure:"contracts_dataset"`
	ContractsAppToken     string `mapstructure:"contracts_app_token"`
	ContractsLimit        int    `mapstructure:"contracts_limit" validate:"min=1"`
	ContractsResultPrefix string `mapstructure:"contracts_result_prefix"`
}

var defaults = map[string]any{
	"app_name":                          "bramble-api",
	"port":                              3004,
	"log_level":                         "info",
	"pretty_logs":                       false,
	"http_server_read_timeout_seconds":  10,
	"http_server_write_timeout_seconds": 30,
	"shutdown_timeout_seconds":          15,
	"startup_max_attempts":              5,
	"tracing_enabled":                   false,
	"tracing_endpoint":                  "",
	"tracing_protocol":                  "grpc",
	"tracing_insecure":                  true,
	"tracing_timeout":                   "10s",

	"registry_endpoint":  "https://companies-mvwuoztvlq-uc.a.run.app",
	"registry_database":  "companies",
	"registry_cache_ttl": "24h",
	"registry_max_pages": 1000,

	"schema_dir":                     "",
	"expansion_file_number_prefixes": []string{"LLC", "COR"},
	"expansion_chunk_size":           100,
	"expansion_concurrency":          4,
	"stub_max_rounds":                5,
	"dedup_ignore_middle_initial":    true,
	"auto_publish":                   false,

	"redis_enabled":  false,
	"redis_host":     "localhost",
	"redis_port":     6379,
	"redis_password": "",
	"redis_db":       0,

	"db_enabled":               false,
	"db_host":                  "localhost",
	"db_port":                  5432,
	"db_user_name":             "",
	"db_password":              "",
	"db_name":                  "bramble",
	"db_ssl_mode":              "disable",
	"db_max_open_conns":        25,
	"db_max_idle_conns":        10,
	"db_conn_max_lifetime":     "10s",
	"db_migration_folder_path": "db/pg",
	"db_migration_version":     0,

	"kafka_enabled":          false,
	"kafka_brokers":          []string{"localhost:9092"},
	"kafka_output_topic":     "bramble.graph-events",
	"kafka_batch_size":       100,
	"kafka_batch_timeout_ms": 100,
	"kafka_required_acks":    1,
	"kafka_compression":      "snappy",

	"graph_db_enabled":       false,
	"graph_db_scheme":        "bolt",
	"graph_db_host":          "localhost",
	"graph_db_port":          7687,
	"graph_db_user":          "",
	"graph_db_password":      "",
	"graph_db_database":      "",
	"graph_db_max_pool_size": 0,

	"contracts_enabled":       false,
	"contracts_base_url":      "https://data.cityofchicago.org",
	"contracts_dataset":       "rsxa-ify5",
	"contracts_app_token":     "",
	"contracts_limit":         1000,
	"contracts_result_prefix": "CHI",
}

// New returns a viper instance with every key defaulted and bound to its upper-cased environment variable
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (when present) and the optional config file, then decodes and validates v
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
