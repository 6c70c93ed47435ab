package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/christopherklint97/dayscore/internal/scoring"
)

const appName = "dayscore"

type Config struct {
	GitHub        GitHubConfig    `toml:"github"`
	Calendar      CalendarConfig  `toml:"calendar"`
	AI            AIConfig        `toml:"ai"`
	Schedule      ScheduleConfig  `toml:"schedule"`
	Notifications NotifyConfig    `toml:"notifications"`
	Scoring       scoring.Weights `toml:"scoring"`
	Server        ServerConfig    `toml:"server"`
	Store         StoreConfig     `toml:"store"`
	Log           LogConfig       `toml:"log"`
}

type GitHubConfig struct {
	Token string   `toml:"token"`
	Repos []string `toml:"repos"`
}

type CalendarConfig struct {
	Enabled        bool     `toml:"enabled"`
	Provider       string   `toml:"provider"` // "ics" or "msgraph"
	Source         string   `toml:"source"`   // ICS URL or file path
	ClientID       string   `toml:"client_id"`
	TenantID       string   `toml:"tenant_id"`
	FocusKeywords  []string `toml:"focus_keywords"`
	IgnoreKeywords []string `toml:"ignore_keywords"`
}

type AIConfig struct {
	Provider       string `toml:"provider"` // "claude-cli", "openai" or "none"
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ScheduleConfig struct {
	RunAt           string `toml:"run_at"`            // HH:MM, local time
	WeeklyReportDay int    `toml:"weekly_report_day"` // 0 = Sunday
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

const (
	CalendarICS     = "ics"
	CalendarMSGraph = "msgraph"
)

const (
	ProviderClaudeCLI = "claude-cli"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

func DefaultConfig() Config {
	return Config{
		Calendar: CalendarConfig{
			Enabled:        false,
			Provider:       CalendarICS,
			TenantID:       "common",
			FocusKeywords:  []string{"focus", "deep work", "heads down", "no meetings"},
			IgnoreKeywords: []string{"lunch", "ooo", "out of office"},
		},
		AI: AIConfig{
			Provider:       ProviderClaudeCLI,
			Model:          "sonnet",
			TimeoutSeconds: 120,
		},
		Schedule: ScheduleConfig{
			RunAt:           "08:00",
			WeeklyReportDay: int(time.Monday),
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Scoring: scoring.DefaultWeights(),
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8484,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over the defaults. A missing file is not
// an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("DAYSCORE_CALENDAR_SOURCE"); v != "" {
		cfg.Calendar.Source = v
		cfg.Calendar.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("DAYSCORE_DB"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate checks the values a typo would otherwise turn into a silent
// misbehavior at run time.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseClock(c.Schedule.RunAt); err != nil {
		errs = append(errs, fmt.Errorf("schedule.run_at: %w", err))
	}
	if c.Schedule.WeeklyReportDay < 0 || c.Schedule.WeeklyReportDay > 6 {
		errs = append(errs, fmt.Errorf("schedule.weekly_report_day must be 0-6, got %d", c.Schedule.WeeklyReportDay))
	}
	switch c.AI.Provider {
	case ProviderClaudeCLI, ProviderOpenAI, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not one of %s, %s, %s",
			c.AI.Provider, ProviderClaudeCLI, ProviderOpenAI, ProviderNone))
	}
	if c.AI.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("ai.timeout_seconds must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Calendar.Enabled {
		switch c.Calendar.Provider {
		case CalendarICS, "":
			if strings.TrimSpace(c.Calendar.Source) == "" {
				errs = append(errs, fmt.Errorf("calendar.source is required when the calendar is enabled"))
			}
		case CalendarMSGraph:
			if strings.TrimSpace(c.Calendar.ClientID) == "" {
				errs = append(errs, fmt.Errorf("calendar.client_id is required for the msgraph provider"))
			}
		default:
			errs = append(errs, fmt.Errorf("calendar.provider %q is not one of %s, %s",
				c.Calendar.Provider, CalendarICS, CalendarMSGraph))
		}
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Clock is a time of day.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses an HH:MM string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file already exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// SaveGitHubRepos persists the selected GitHub repos to the config file
// using a read-modify-write approach to preserve other settings.
func SaveGitHubRepos(repos []string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveGitHubReposTo(path, repos)
}

// SaveGitHubReposTo is SaveGitHubRepos for the config file at path.
func SaveGitHubReposTo(path string, repos []string) error {
	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	gh, ok := cfg["github"].(map[string]any)
	if !ok {
		gh = make(map[string]any)
	}
	gh["repos"] = repos
	cfg["github"] = gh

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// DefaultStorePath is the database location used when store.path is unset.
func DefaultStorePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".db"), nil
}

// StorePath resolves the configured database path, falling back to the default.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	return DefaultStorePath()
}

// Addr is the host:port the HTTP API listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
