package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime settings, loaded from environment variables
// with development-friendly defaults.
type Config struct {
	DBConfig struct {
		Host     string `env:"LEDGER_DB_HOST"`
		Port     int    `env:"LEDGER_DB_PORT"`
		User     string `env:"LEDGER_DB_USER"`
		Password string `env:"LEDGER_DB_PASSWORD"`
		Name     string `env:"LEDGER_DB_NAME"`
	}

	HTTPAddr       string `env:"LEDGER_HTTP_ADDR"`
	MigrationsPath string `env:"LEDGER_MIGRATIONS_PATH"`

	// KafkaBrokerURL enables the Kafka audit publisher when non-empty.
	KafkaBrokerURL  string `env:"LEDGER_KAFKA_BROKER_URL"`
	KafkaAuditTopic string `env:"LEDGER_KAFKA_AUDIT_TOPIC"`

	// AllowSelfTransfer controls the sender-equals-receiver policy.
	AllowSelfTransfer bool `env:"LEDGER_ALLOW_SELF_TRANSFER"`

	// TxMaxRetries bounds re-execution of conflicting transactions.
	TxMaxRetries int `env:"LEDGER_TX_MAX_RETRIES"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("LEDGER_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "postgres")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "postgres")
	cfg.DBConfig.Name = getEnvOrDefault("LEDGER_DB_NAME", "ledgerflow")

	cfg.HTTPAddr = getEnvOrDefault("LEDGER_HTTP_ADDR", ":8080")
	cfg.MigrationsPath = getEnvOrDefault("LEDGER_MIGRATIONS_PATH", "migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("LEDGER_KAFKA_BROKER_URL", "")
	cfg.KafkaAuditTopic = getEnvOrDefault("LEDGER_KAFKA_AUDIT_TOPIC", "ledger-audit-events")

	cfg.AllowSelfTransfer = getEnvAsBool("LEDGER_ALLOW_SELF_TRANSFER", true)
	cfg.TxMaxRetries = getEnvAsInt("LEDGER_TX_MAX_RETRIES", 3)

	return cfg, nil
}

// GetDBConnectionString builds the lib/pq keyword connection string.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name)
}

// GetDBMigrationConnectionString builds the URL form golang-migrate expects.
func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name)
}

// GetKafkaBrokers splits the broker URL list.
func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
