package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.AntiCheat.MaxSpeed != 15.0 {
		t.Fatalf("default max speed = %f", cfg.AntiCheat.MaxSpeed)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file errored: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Fatalf("defaults not applied: port = %d", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9001
max_clients = 64

[anticheat]
max_speed = 25.0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9001 || cfg.Server.MaxClients != 64 {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.AntiCheat.MaxSpeed != 25.0 {
		t.Fatalf("anticheat override not applied: %f", cfg.AntiCheat.MaxSpeed)
	}
	// untouched values keep defaults
	if cfg.Server.TickRate != 60 {
		t.Fatalf("tick rate default lost: %d", cfg.Server.TickRate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAME_PORT", "8888")
	t.Setenv("GAME_MAX_CLIENTS", "100")
	t.Setenv("GAME_DB_CONNECTION", "user:pass@/game")
	t.Setenv("GAME_SCRIPTS_PATH", "custom/scripts")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Server.Port != 8888 {
		t.Fatalf("GAME_PORT not applied: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxClients != 100 {
		t.Fatalf("GAME_MAX_CLIENTS not applied: %d", cfg.Server.MaxClients)
	}
	if cfg.Database.Connection != "user:pass@/game" {
		t.Fatalf("GAME_DB_CONNECTION not applied: %q", cfg.Database.Connection)
	}
	if cfg.Scripts.Path != "custom/scripts" {
		t.Fatalf("GAME_SCRIPTS_PATH not applied: %q", cfg.Scripts.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Server.Port = 0 },
		func(c *Config) { c.Server.Port = 70000 },
		func(c *Config) { c.Server.MaxClients = 0 },
		func(c *Config) { c.Server.TickRate = 0 },
		func(c *Config) { c.Server.StateBroadcastPeriod = 0 },
		func(c *Config) { c.Server.PersistPeriod = -1 },
		func(c *Config) { c.Server.CellSize = 0 },
	}

	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: invalid config accepted", i)
		}
	}
}
