package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Processor struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		RetryMax       int    `yaml:"retry_max"`
	} `yaml:"processor"`
	Orders struct {
		Amount                string `yaml:"amount"`
		Token                 string `yaml:"token"`
		Network               string `yaml:"network"`
		Fiat                  string `yaml:"fiat"`
		RefreshWindowMinutes  int    `yaml:"refresh_window_minutes"`
		MaxCreateAttempts     int    `yaml:"max_create_attempts"`
		FallbackReturnAddress string `yaml:"fallback_return_address"`
	} `yaml:"orders"`
	Watchdog struct {
		IntervalSeconds    int `yaml:"interval_seconds"`
		StatusPollAttempts int `yaml:"status_poll_attempts"`
		SessionBatch       int `yaml:"session_batch"`
	} `yaml:"watchdog"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Processor.BaseURL == "" || cfg.Processor.APIKey == "" {
		return nil, errors.New("processor config is incomplete")
	}
	if cfg.Orders.Token == "" || cfg.Orders.Network == "" || cfg.Orders.Fiat == "" {
		return nil, errors.New("orders config is incomplete")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("PAYCREST_BASE_URL"); v != "" {
		cfg.Processor.BaseURL = v
	}
	if v := os.Getenv("PAYCREST_API_KEY"); v != "" {
		cfg.Processor.APIKey = v
	}
	if v := os.Getenv("PAYCREST_TIMEOUT_SECONDS"); v != "" {
		cfg.Processor.TimeoutSeconds = atoiOr(cfg.Processor.TimeoutSeconds, v)
	}
	if v := os.Getenv("PAYCREST_RETRY_MAX"); v != "" {
		cfg.Processor.RetryMax = atoiOr(cfg.Processor.RetryMax, v)
	}
	if v := os.Getenv("ORDER_AMOUNT"); v != "" {
		cfg.Orders.Amount = v
	}
	if v := os.Getenv("ORDER_TOKEN"); v != "" {
		cfg.Orders.Token = v
	}
	if v := os.Getenv("ORDER_NETWORK"); v != "" {
		cfg.Orders.Network = v
	}
	if v := os.Getenv("ORDER_FIAT"); v != "" {
		cfg.Orders.Fiat = v
	}
	if v := os.Getenv("ORDER_REFRESH_WINDOW_MINUTES"); v != "" {
		cfg.Orders.RefreshWindowMinutes = atoiOr(cfg.Orders.RefreshWindowMinutes, v)
	}
	if v := os.Getenv("ORDER_MAX_CREATE_ATTEMPTS"); v != "" {
		cfg.Orders.MaxCreateAttempts = atoiOr(cfg.Orders.MaxCreateAttempts, v)
	}
	if v := os.Getenv("FALLBACK_RETURN_ADDRESS"); v != "" {
		cfg.Orders.FallbackReturnAddress = v
	}
	if v := os.Getenv("WATCHDOG_INTERVAL_SECONDS"); v != "" {
		cfg.Watchdog.IntervalSeconds = atoiOr(cfg.Watchdog.IntervalSeconds, v)
	}
	if v := os.Getenv("WATCHDOG_STATUS_POLL_ATTEMPTS"); v != "" {
		cfg.Watchdog.StatusPollAttempts = atoiOr(cfg.Watchdog.StatusPollAttempts, v)
	}
	if v := os.Getenv("WATCHDOG_SESSION_BATCH"); v != "" {
		cfg.Watchdog.SessionBatch = atoiOr(cfg.Watchdog.SessionBatch, v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Processor.TimeoutSeconds <= 0 {
		cfg.Processor.TimeoutSeconds = 10
	}
	if cfg.Processor.RetryMax < 0 {
		cfg.Processor.RetryMax = 0
	}
	if cfg.Orders.Amount == "" {
		cfg.Orders.Amount = "0.5"
	}
	if cfg.Orders.RefreshWindowMinutes <= 0 {
		cfg.Orders.RefreshWindowMinutes = 30
	}
	if cfg.Orders.MaxCreateAttempts <= 0 {
		cfg.Orders.MaxCreateAttempts = 2
	}
	if cfg.Watchdog.IntervalSeconds <= 0 {
		cfg.Watchdog.IntervalSeconds = 60
	}
	if cfg.Watchdog.StatusPollAttempts <= 0 {
		cfg.Watchdog.StatusPollAttempts = 10
	}
	if cfg.Watchdog.SessionBatch <= 0 {
		cfg.Watchdog.SessionBatch = 100
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
