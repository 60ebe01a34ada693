package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	AntiCheat AntiCheatConfig `toml:"anticheat"`
	Scripts   ScriptsConfig   `toml:"scripts"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
}

type ServerConfig struct {
	Port       int `toml:"port"`
	MaxClients int `toml:"max_clients"`
	TickRate   int `toml:"tick_rate"`

	// periods in seconds
	StateBroadcastPeriod float64 `toml:"state_broadcast_period"`
	PersistPeriod        float64 `toml:"persist_period"`
	PerfReportPeriod     float64 `toml:"perf_report_period"`

	CellSize float64 `toml:"cell_size"`

	// logging configuration
	LogToFile bool `toml:"log_to_file"`
}

type DatabaseConfig struct {
	Connection string `toml:"connection"`
	QueueSize  int    `toml:"queue_size"`
}

type AntiCheatConfig struct {
	Enabled             bool    `toml:"enabled"`
	MaxSpeed            float64 `toml:"max_speed"`
	MaxActionsPerSecond int     `toml:"max_actions_per_second"`
	SuspiciousThreshold int     `toml:"suspicious_threshold"`
}

type ScriptsConfig struct {
	Path string `toml:"path"`
}

type CleanupConfig struct {
	Enabled     bool    `toml:"enabled"`
	Interval    float64 `toml:"interval"`
	IdleTimeout float64 `toml:"idle_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 7777,
			MaxClients:           32,
			TickRate:             60,
			StateBroadcastPeriod: 0.05,
			PersistPeriod:        5.0,
			PerfReportPeriod:     60.0,
			CellSize:             50.0,
		},
		Database: DatabaseConfig{
			QueueSize: 1024,
		},
		AntiCheat: AntiCheatConfig{
			Enabled:             true,
			MaxSpeed:            15.0,
			MaxActionsPerSecond: 20,
			SuspiciousThreshold: 10,
		},
		Scripts: ScriptsConfig{
			Path: "scripts",
		},
		Cleanup: CleanupConfig{
			Interval:    30.0,
			IdleTimeout: 300.0,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error;
// the defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overlays the documented environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GAME_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("GAME_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxClients = n
		}
	}
	if v := os.Getenv("GAME_DB_CONNECTION"); v != "" {
		c.Database.Connection = v
	}
	if v := os.Getenv("GAME_SCRIPTS_PATH"); v != "" {
		c.Scripts.Path = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.MaxClients <= 0 {
		return fmt.Errorf("invalid max_clients: %d", c.Server.MaxClients)
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 1000 {
		return fmt.Errorf("invalid tick_rate: %d", c.Server.TickRate)
	}
	if c.Server.StateBroadcastPeriod <= 0 {
		return fmt.Errorf("invalid state_broadcast_period: %f", c.Server.StateBroadcastPeriod)
	}
	if c.Server.PersistPeriod <= 0 {
		return fmt.Errorf("invalid persist_period: %f", c.Server.PersistPeriod)
	}
	if c.Server.CellSize <= 0 {
		return fmt.Errorf("invalid cell_size: %f", c.Server.CellSize)
	}
	if c.Cleanup.Enabled && c.Cleanup.IdleTimeout <= 0 {
		return fmt.Errorf("invalid idle_timeout: %f", c.Cleanup.IdleTimeout)
	}
	return nil
}
