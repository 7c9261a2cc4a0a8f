package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/offramp"
processor:
  base_url: "https://api.example.com/v1"
  api_key: "key123"
orders:
  token: "USDC"
  network: "base"
  fiat: "NGN"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Processor.TimeoutSeconds != 10 {
		t.Errorf("timeout = %d, want 10", cfg.Processor.TimeoutSeconds)
	}
	if cfg.Orders.Amount != "0.5" {
		t.Errorf("amount = %q, want 0.5", cfg.Orders.Amount)
	}
	if cfg.Orders.RefreshWindowMinutes != 30 {
		t.Errorf("refresh window = %d, want 30", cfg.Orders.RefreshWindowMinutes)
	}
	if cfg.Orders.MaxCreateAttempts != 2 {
		t.Errorf("max create attempts = %d, want 2", cfg.Orders.MaxCreateAttempts)
	}
	if cfg.Watchdog.IntervalSeconds != 60 || cfg.Watchdog.StatusPollAttempts != 10 || cfg.Watchdog.SessionBatch != 100 {
		t.Errorf("watchdog defaults = %+v", cfg.Watchdog)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("PAYCREST_API_KEY", "env-key")
	t.Setenv("ORDER_AMOUNT", "1.25")
	t.Setenv("ORDER_MAX_CREATE_ATTEMPTS", "3")
	t.Setenv("WATCHDOG_INTERVAL_SECONDS", "5")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Processor.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.Processor.APIKey)
	}
	if cfg.Orders.Amount != "1.25" {
		t.Errorf("amount = %q, want 1.25", cfg.Orders.Amount)
	}
	if cfg.Orders.MaxCreateAttempts != 3 {
		t.Errorf("max create attempts = %d, want 3", cfg.Orders.MaxCreateAttempts)
	}
	if cfg.Watchdog.IntervalSeconds != 5 {
		t.Errorf("watchdog interval = %d, want 5", cfg.Watchdog.IntervalSeconds)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no server addr", `
db:
  dsn: "postgres://localhost/offramp"
processor:
  base_url: "https://api.example.com/v1"
  api_key: "key123"
orders:
  token: "USDC"
  network: "base"
  fiat: "NGN"
`},
		{"no processor key", `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/offramp"
processor:
  base_url: "https://api.example.com/v1"
orders:
  token: "USDC"
  network: "base"
  fiat: "NGN"
`},
		{"no orders fiat", `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/offramp"
processor:
  base_url: "https://api.example.com/v1"
  api_key: "key123"
orders:
  token: "USDC"
  network: "base"
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
