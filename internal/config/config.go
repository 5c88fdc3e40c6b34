package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/tavla/internal/domain"
)

type RemoteMode string

const (
	RemoteModeLocal RemoteMode = "local"
	RemoteModeHTTP  RemoteMode = "http"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Ordering OrderingConfig `toml:"ordering"`
	Remote   RemoteConfig   `toml:"remote"`
	Server   ServerConfig   `toml:"server"`
	Backup   BackupConfig   `toml:"backup"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
	Keys     KeysConfig     `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type OrderingConfig struct {
	InitialKey float64 `toml:"initial_key"`
	Step       float64 `toml:"step"`
}

type RemoteConfig struct {
	Mode         RemoteMode `toml:"mode"`
	BaseURL      string     `toml:"base_url"`
	ReconnectMin Duration   `toml:"reconnect_min"`
	ReconnectMax Duration   `toml:"reconnect_max"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type BackupConfig struct {
	Endpoint     string `toml:"endpoint"`
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`
	Prefix       string `toml:"prefix"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	DefaultColumns []string `toml:"default_columns"`
}

type KeysConfig struct {
	GrabCard   string `toml:"grab_card"`
	GrabColumn string `toml:"grab_column"`
	Yank       string `toml:"yank"`
	Boards     string `toml:"boards"`
}

// Duration reads TOML strings such as "500ms" or "30s".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func Default(dbPath string) Config {
	alloc := domain.DefaultAllocator()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Ordering: OrderingConfig{
			InitialKey: float64(alloc.Initial),
			Step:       float64(alloc.Step),
		},
		Remote: RemoteConfig{
			Mode:         RemoteModeLocal,
			BaseURL:      "http://127.0.0.1:8080/api/v1",
			ReconnectMin: Duration(500 * time.Millisecond),
			ReconnectMax: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Backup: BackupConfig{
			Region: "us-east-1",
			Prefix: "tavla",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".tavla/log",
			},
		},
		Board: BoardConfig{
			DefaultColumns: []string{"To Do", "In Progress", "Done"},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := domain.NewAllocator(domain.OrderKey(c.Ordering.InitialKey), domain.OrderKey(c.Ordering.Step)); err != nil {
		return fmt.Errorf("invalid ordering section: %w", err)
	}

	switch c.Remote.Mode {
	case RemoteModeLocal:
	case RemoteModeHTTP:
		u, err := url.Parse(strings.TrimSpace(c.Remote.BaseURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	default:
		return fmt.Errorf("invalid remote.mode: %q", c.Remote.Mode)
	}
	if c.Remote.ReconnectMin <= 0 {
		return errors.New("remote.reconnect_min must be > 0")
	}
	if c.Remote.ReconnectMax < c.Remote.ReconnectMin {
		return errors.New("remote.reconnect_max must be >= remote.reconnect_min")
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	keys := map[string]string{}
	for name, raw := range map[string]string{
		"grab_card":   c.Keys.GrabCard,
		"grab_column": c.Keys.GrabColumn,
		"yank":        c.Keys.Yank,
		"boards":      c.Keys.Boards,
	} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if other, ok := keys[raw]; ok {
			return fmt.Errorf("keys.%s and keys.%s share %q", name, other, raw)
		}
		keys[raw] = name
	}

	seen := map[string]struct{}{}
	for idx, title := range c.Board.DefaultColumns {
		title = strings.TrimSpace(title)
		if title == "" {
			return fmt.Errorf("board.default_columns[%d] is empty", idx)
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("board.default_columns[%d] is duplicated: %s", idx, title)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// Allocator returns the order key allocator described by the ordering section.
func (c Config) Allocator() domain.Allocator {
	return domain.Allocator{
		Initial: domain.OrderKey(c.Ordering.InitialKey),
		Step:    domain.OrderKey(c.Ordering.Step),
	}
}

// BackupConfigured reports whether backup push/pull can run.
func (c Config) BackupConfigured() bool {
	return strings.TrimSpace(c.Backup.Bucket) != ""
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
