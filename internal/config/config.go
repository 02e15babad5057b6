package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type MissingStockPolicy string

const (
	// MissingStockSkip logs and skips a requirement whose stock unit is gone.
	MissingStockSkip MissingStockPolicy = "skip"
	// MissingStockAbort fails the whole line operation instead.
	MissingStockAbort MissingStockPolicy = "abort"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Printing   PrintingConfig   `yaml:"printing"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    string           `yaml:"storage"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
}

type RabbitMQConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	EventExchange string `yaml:"event_exchange"`
	CommandQueue  string `yaml:"command_queue"`
	Prefetch      int    `yaml:"prefetch"`
}

type PrintingConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	DefaultPort    int           `yaml:"default_port"`
}

type ReconcilerConfig struct {
	MissingStockPolicy MissingStockPolicy `yaml:"missing_stock_policy"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	AuthHeader  string `yaml:"auth_header"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Load reads the YAML file at path. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "waiter",
			Database: "waiter",
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQConfig{
			Host:          "localhost",
			Port:          5672,
			User:          "guest",
			Password:      "guest",
			EventExchange: "pos_events",
			CommandQueue:  "pos_commands",
			Prefetch:      1,
		},
		Printing: PrintingConfig{
			PollInterval:   5 * time.Second,
			ConnectTimeout: 3 * time.Second,
			WriteTimeout:   5 * time.Second,
			DefaultPort:    9100,
		},
		Reconciler: ReconcilerConfig{
			MissingStockPolicy: MissingStockSkip,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "waiter",
		},
		Storage: StoragePostgres,
	}
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	switch c.Reconciler.MissingStockPolicy {
	case MissingStockSkip, MissingStockAbort:
	default:
		return fmt.Errorf("invalid reconciler.missing_stock_policy %q", c.Reconciler.MissingStockPolicy)
	}
	if c.Printing.PollInterval <= 0 {
		return fmt.Errorf("printing.poll_interval must be positive")
	}
	if c.Printing.ConnectTimeout <= 0 {
		return fmt.Errorf("printing.connect_timeout must be positive")
	}
	if c.RabbitMQ.Prefetch < 1 {
		return fmt.Errorf("rabbitmq.prefetch must be at least 1")
	}
	return nil
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}
