package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server    ServerSection    `toml:"server"`
	Handshake HandshakeSection `toml:"handshake"`
	Limits    LimitsSection    `toml:"limits"`
	Commands  CommandsSection  `toml:"commands"`
	Log       LogSection       `toml:"log"`
}

type ServerSection struct {
	TCPAddr        string `toml:"tcp_addr"`
	HTTPAddr       string `toml:"http_addr"`
	DatabasePath   string `toml:"database_path"`
	ServerName     string `toml:"server_name"`
	WelcomeText    string `toml:"welcome_text"`
	DefaultChannel string `toml:"default_channel"`
}

type HandshakeSection struct {
	TimeoutSeconds     int                `toml:"timeout_seconds"`
	AllowCreateAccount bool               `toml:"allow_create_account"`
	GameVersions       []GameVersionEntry `toml:"game_versions"`
}

// GameVersionEntry maps one accepted client build GUID to a display name.
// Order matters: a client's position in this list is the version index sent
// in /$user announcements and in the ServerWelcome version list.
type GameVersionEntry struct {
	GUID string `toml:"guid"`
	Name string `toml:"name"`
}

type LimitsSection struct {
	CommandRateLimit        int `toml:"command_rate_limit"`
	CommandRateBurst        int `toml:"command_rate_burst"`
	SendQueueDepth          int `toml:"send_queue_depth"`
	MaxCommandLength        int `toml:"max_command_length"`
	RequestedGameTTLSeconds int `toml:"requested_game_ttl_seconds"`
	StatsIntervalSeconds    int `toml:"stats_interval_seconds"`
}

type CommandsSection struct {
	// UnknownPolicy is "drop" or "forward_as_chat".
	UnknownPolicy string `toml:"unknown_policy"`
}

type LogSection struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			TCPAddr:        ":17171",
			HTTPAddr:       ":17172",
			DatabasePath:   "~/.earthnet/earthnet.db",
			ServerName:     "EarthNet",
			WelcomeText:    "Welcome to EarthNet!",
			DefaultChannel: "General",
		},
		Handshake: HandshakeSection{
			TimeoutSeconds:     30,
			AllowCreateAccount: true,
			GameVersions: []GameVersionEntry{
				{GUID: "534ba248-a87c-4ce9-8bee-bc376aae6134", Name: "The Moon Project"},
			},
		},
		Limits: LimitsSection{
			CommandRateLimit:        10,
			CommandRateBurst:        20,
			SendQueueDepth:          64,
			MaxCommandLength:        1024,
			RequestedGameTTLSeconds: 30,
			StatsIntervalSeconds:    10,
		},
		Commands: CommandsSection{
			UnknownPolicy: "drop",
		},
		Log: LogSection{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# EarthNet Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GameVersion is one accepted client build with its parsed GUID.
type GameVersion struct {
	ID   uuid.UUID
	Name string
}

// ServerConfig is the validated runtime configuration.
type ServerConfig struct {
	TCPAddr          string
	HTTPAddr         string
	ServerName       string
	WelcomeText      string
	DefaultChannel   string
	HandshakeTimeout time.Duration
	AllowCreate      bool
	GameVersions     []GameVersion
	CommandRate      int
	CommandBurst     int
	SendQueueDepth   int
	MaxCommandLength int
	RequestedGameTTL time.Duration
	StatsInterval    time.Duration
	UnknownPolicy    string
}

// ToServerConfig validates the file config and fills gaps with defaults.
func (c *TOMLConfig) ToServerConfig() (ServerConfig, error) {
	def := DefaultTOMLConfig()
	cfg := ServerConfig{
		TCPAddr:          c.Server.TCPAddr,
		HTTPAddr:         c.Server.HTTPAddr,
		ServerName:       c.Server.ServerName,
		WelcomeText:      c.Server.WelcomeText,
		DefaultChannel:   c.Server.DefaultChannel,
		AllowCreate:      c.Handshake.AllowCreateAccount,
		CommandRate:      c.Limits.CommandRateLimit,
		CommandBurst:     c.Limits.CommandRateBurst,
		SendQueueDepth:   c.Limits.SendQueueDepth,
		MaxCommandLength: c.Limits.MaxCommandLength,
		UnknownPolicy:    c.Commands.UnknownPolicy,
	}

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = def.Server.TCPAddr
	}
	if cfg.ServerName == "" {
		cfg.ServerName = def.Server.ServerName
	}
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = def.Server.DefaultChannel
	}
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = def.Limits.CommandRateLimit
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = def.Limits.CommandRateBurst
	}
	if cfg.SendQueueDepth <= 0 {
		cfg.SendQueueDepth = def.Limits.SendQueueDepth
	}
	if cfg.MaxCommandLength <= 0 {
		cfg.MaxCommandLength = def.Limits.MaxCommandLength
	}

	seconds := c.Handshake.TimeoutSeconds
	if seconds <= 0 {
		seconds = def.Handshake.TimeoutSeconds
	}
	cfg.HandshakeTimeout = time.Duration(seconds) * time.Second

	seconds = c.Limits.RequestedGameTTLSeconds
	if seconds <= 0 {
		seconds = def.Limits.RequestedGameTTLSeconds
	}
	cfg.RequestedGameTTL = time.Duration(seconds) * time.Second

	seconds = c.Limits.StatsIntervalSeconds
	if seconds <= 0 {
		seconds = def.Limits.StatsIntervalSeconds
	}
	cfg.StatsInterval = time.Duration(seconds) * time.Second

	switch cfg.UnknownPolicy {
	case "":
		cfg.UnknownPolicy = def.Commands.UnknownPolicy
	case "drop", "forward_as_chat":
	default:
		return ServerConfig{}, fmt.Errorf("invalid unknown_policy %q", cfg.UnknownPolicy)
	}

	versions := c.Handshake.GameVersions
	if len(versions) == 0 {
		versions = def.Handshake.GameVersions
	}
	for _, v := range versions {
		id, err := uuid.Parse(v.GUID)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("invalid game version guid %q: %w", v.GUID, err)
		}
		cfg.GameVersions = append(cfg.GameVersions, GameVersion{ID: id, Name: v.Name})
	}

	return cfg, nil
}

// VersionIndex returns the position of a client build in the accepted list,
// or false when the build is not allowed on this server.
func (cfg *ServerConfig) VersionIndex(id uuid.UUID) (uint32, bool) {
	for i, v := range cfg.GameVersions {
		if v.ID == id {
			return uint32(i), true
		}
	}
	return 0, false
}

// GetDatabasePath returns the database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return expandHome(c.Server.DatabasePath)
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}
