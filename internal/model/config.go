package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// UserConfig is the signed-in identity used by the CLI.
type UserConfig struct {
	ID    string `mapstructure:"id" yaml:"id"`
	Email string `mapstructure:"email" yaml:"email"`
	Name  string `mapstructure:"name" yaml:"name"`
}

// DatabaseConfig locates the SQLite record store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// FeedConfig controls the notification feed refresh.
type FeedConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	Limit           int `mapstructure:"limit" yaml:"limit"`
}

// PollInterval returns the poll period as a duration.
func (f FeedConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalSec) * time.Second
}

// SMTPConfig holds outbound mail settings. When Host is empty, emails are
// only logged. ArchiveMailbox, if set, receives a copy of every sent
// message over IMAP.
type SMTPConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           string `mapstructure:"port" yaml:"port"`
	Username       string `mapstructure:"username" yaml:"username"`
	Password       string `mapstructure:"password" yaml:"password"`
	From           string `mapstructure:"from" yaml:"from"`
	TLS            bool   `mapstructure:"tls" yaml:"tls"`
	ArchiveMailbox string `mapstructure:"archive_mailbox" yaml:"archive_mailbox"`
	IMAPHost       string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort       string `mapstructure:"imap_port" yaml:"imap_port"`
}

// RedisConfig enables the push channel for notifications. An empty Addr
// keeps delivery in-process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// PolicyConfig holds the workflow policy switches.
type PolicyConfig struct {
	// AllowReinviteAfterReject lets a requester invite the same email again
	// once the earlier invitation was rejected.
	AllowReinviteAfterReject bool `mapstructure:"allow_reinvite_after_reject" yaml:"allow_reinvite_after_reject"`

	// EnforceTeamAssignee rejects assignees that are not accepted teammates
	// of the task owner.
	EnforceTeamAssignee bool `mapstructure:"enforce_team_assignee" yaml:"enforce_team_assignee"`
}

// LogConfig controls the zap logger built by the CLI.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	SiteName string         `mapstructure:"site_name" yaml:"site_name"`
	AppURL   string         `mapstructure:"app_url" yaml:"app_url"`
	User     UserConfig     `mapstructure:"user" yaml:"user"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Feed     FeedConfig     `mapstructure:"feed" yaml:"feed"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Policy   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/teamtasks/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "teamtasks", "config.yaml")
}

// DefaultDatabasePath returns ~/.config/teamtasks/teamtasks.db.
func DefaultDatabasePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "teamtasks.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		SiteName: "Team Tasks",
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
		Feed: FeedConfig{
			PollIntervalSec: 30,
			Limit:           50,
		},
		SMTP: SMTPConfig{
			Port:     "587",
			IMAPPort: "993",
		},
		Policy: PolicyConfig{
			EnforceTeamAssignee: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	// Keys without a default are registered empty so AutomaticEnv can
	// still bind them during Unmarshal.
	for _, k := range []string{
		"app_url", "user.id", "user.email", "user.name",
		"smtp.host", "smtp.username", "smtp.password", "smtp.from",
		"smtp.archive_mailbox", "smtp.imap_host",
		"redis.addr", "redis.password",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("smtp.tls", false)
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.development", false)
	v.SetDefault("site_name", d.SiteName)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("feed.poll_interval_sec", d.Feed.PollIntervalSec)
	v.SetDefault("feed.limit", d.Feed.Limit)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.imap_port", d.SMTP.IMAPPort)
	v.SetDefault("policy.allow_reinvite_after_reject", false)
	v.SetDefault("policy.enforce_team_assignee", true)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with TEAMTASKS_ override file values
// (e.g. TEAMTASKS_SMTP_PASSWORD).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("teamtasks")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Feed.PollIntervalSec <= 0 {
		cfg.Feed.PollIntervalSec = 30
	}
	if cfg.Feed.Limit <= 0 {
		cfg.Feed.Limit = 50
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("site_name", cfg.SiteName)
	v.Set("app_url", cfg.AppURL)
	v.Set("user", cfg.User)
	v.Set("database", cfg.Database)
	v.Set("feed", cfg.Feed)
	v.Set("smtp", cfg.SMTP)
	v.Set("redis", cfg.Redis)
	v.Set("policy", cfg.Policy)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
