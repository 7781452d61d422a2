// Package config loads service settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Journal backends.
const (
	JournalNone       = "none"
	JournalMemory     = "memory"
	JournalPostgres   = "postgres"
	JournalClickHouse = "clickhouse"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	HTTPAddr string

	RPCURL         string
	WSURL          string
	RPCMaxRetries  int
	Cluster        string
	ExplorerURL    string
	ConfirmTimeout time.Duration
	AllowOffCurve  bool

	WalletSecret string

	ExecutionInterval time.Duration
	IngestionInterval time.Duration
	CallTimeout       time.Duration
	MaxResults        int

	FeedsFile string
	Horizon   time.Duration
	Calendars []string

	Journal       string
	PostgresDSN   string
	ClickHouseDSN string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CALENDEFI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http-addr", ":8080")
	v.SetDefault("rpc-url", "https://api.devnet.solana.com")
	v.SetDefault("ws-url", "")
	v.SetDefault("rpc-max-retries", 3)
	v.SetDefault("cluster", "devnet")
	v.SetDefault("explorer-url", "https://explorer.solana.com")
	v.SetDefault("confirm-timeout", 40*time.Second)
	v.SetDefault("allow-off-curve", false)
	v.SetDefault("execution-interval", 30*time.Second)
	v.SetDefault("ingestion-interval", 60*time.Second)
	v.SetDefault("call-timeout", 45*time.Second)
	v.SetDefault("max-results", 20)
	v.SetDefault("horizon", 30*24*time.Hour)
	v.SetDefault("journal", JournalMemory)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("calendefi")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		HTTPAddr:          v.GetString("http-addr"),
		RPCURL:            v.GetString("rpc-url"),
		WSURL:             v.GetString("ws-url"),
		RPCMaxRetries:     v.GetInt("rpc-max-retries"),
		Cluster:           v.GetString("cluster"),
		ExplorerURL:       v.GetString("explorer-url"),
		ConfirmTimeout:    v.GetDuration("confirm-timeout"),
		AllowOffCurve:     v.GetBool("allow-off-curve"),
		WalletSecret:      v.GetString("wallet-secret"),
		ExecutionInterval: v.GetDuration("execution-interval"),
		IngestionInterval: v.GetDuration("ingestion-interval"),
		CallTimeout:       v.GetDuration("call-timeout"),
		MaxResults:        v.GetInt("max-results"),
		FeedsFile:         v.GetString("feeds"),
		Horizon:           v.GetDuration("horizon"),
		Calendars:         getStringSlice(v, "calendar"),
		Journal:           strings.ToLower(v.GetString("journal")),
		PostgresDSN:       v.GetString("pg-dsn"),
		ClickHouseDSN:     v.GetString("ch-dsn"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if c.ExecutionInterval < time.Second {
		return fmt.Errorf("execution interval %s is below 1s", c.ExecutionInterval)
	}
	if c.IngestionInterval < time.Second {
		return fmt.Errorf("ingestion interval %s is below 1s", c.IngestionInterval)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", c.MaxResults)
	}
	for _, id := range c.Calendars {
		if !strings.Contains(id, "@") {
			return fmt.Errorf("invalid calendar id %q", id)
		}
	}

	switch c.Journal {
	case JournalNone, JournalMemory:
	case JournalPostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres journal requires pg-dsn")
		}
	case JournalClickHouse:
		if c.ClickHouseDSN == "" {
			return errors.New("clickhouse journal requires ch-dsn")
		}
	default:
		return fmt.Errorf("unknown journal backend %q", c.Journal)
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
