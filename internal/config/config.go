package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"khata/internal/core"
)

type Config struct {
	// Database
	SQLiteDBPath   string
	AttachmentsDir string

	// AMQP; an empty URL disables publishing and the consumer
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Categorizer
	CategorizerThreshold string
	PurchaseKeywords     []string

	// Worker
	EnsureTodayInterval time.Duration
	WorkerPrefetch      int

	// Read cache
	BalanceCacheSize int
	BalanceCacheTTL  time.Duration

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/khata.db"),
		AttachmentsDir: getEnv("ATTACHMENTS_DIR", "./data/attachments"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "khata"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "propagate_balances"),

		CategorizerThreshold: getEnv("CATEGORIZER_THRESHOLD", core.DefaultExpenseThreshold.String()),
		PurchaseKeywords:     getEnvList("CATEGORIZER_PURCHASE_KEYWORDS", core.DefaultPurchaseKeywords),

		EnsureTodayInterval: getEnvDuration("ENSURE_TODAY_INTERVAL", 15*time.Minute),
		WorkerPrefetch:      getEnvInt("WORKER_PREFETCH", 5),

		BalanceCacheSize: getEnvInt("BALANCE_CACHE_SIZE", 366),
		BalanceCacheTTL:  getEnvDuration("BALANCE_CACHE_TTL", 10*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if c.AttachmentsDir == "" {
		errors = append(errors, "attachments directory cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if threshold, err := core.ParseMoney(c.CategorizerThreshold); err != nil {
		errors = append(errors, fmt.Sprintf("invalid categorizer threshold '%s': %v", c.CategorizerThreshold, err))
	} else if threshold.Validate() != nil {
		errors = append(errors, fmt.Sprintf("invalid categorizer threshold '%s': must be greater than zero", c.CategorizerThreshold))
	}
	if len(c.PurchaseKeywords) == 0 {
		errors = append(errors, "at least one purchase keyword is required")
	}

	if c.EnsureTodayInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid ensure-today interval %v: must be at least 1 minute", c.EnsureTodayInterval))
	} else if c.EnsureTodayInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ensure-today interval %v: must be at most 24 hours", c.EnsureTodayInterval))
	}
	if c.WorkerPrefetch < 1 || c.WorkerPrefetch > 100 {
		errors = append(errors, fmt.Sprintf("invalid worker prefetch %d: must be between 1 and 100", c.WorkerPrefetch))
	}

	if c.BalanceCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid balance cache size %d: must be at least 1", c.BalanceCacheSize))
	}
	if c.BalanceCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid balance cache TTL %v: must be at least 1 second", c.BalanceCacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Categorizer builds the transaction categorizer. Call it on a validated
// config.
func (c *Config) Categorizer() *core.Categorizer {
	threshold, err := core.ParseMoney(c.CategorizerThreshold)
	if err != nil {
		threshold = core.DefaultExpenseThreshold
	}
	return core.NewCategorizer(threshold, c.PurchaseKeywords)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
