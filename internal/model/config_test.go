package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SiteName != "Team Tasks" {
		t.Errorf("SiteName = %q", cfg.SiteName)
	}
	if cfg.Feed.Limit != 50 || cfg.Feed.PollInterval() != 30*time.Second {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if !cfg.Policy.EnforceTeamAssignee || cfg.Policy.AllowReinviteAfterReject {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.SMTP.Host != "" || cfg.Redis.Addr != "" {
		t.Errorf("smtp/redis should be disabled by default: %+v %+v", cfg.SMTP, cfg.Redis)
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `site_name: Acme
user:
  id: u1
  email: alice@x.com
feed:
  poll_interval_sec: 5
  limit: 0
policy:
  allow_reinvite_after_reject: true
  enforce_team_assignee: false
redis:
  addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SiteName != "Acme" || cfg.User.ID != "u1" || cfg.User.Email != "alice@x.com" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Feed.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v", cfg.Feed.PollInterval())
	}
	if cfg.Feed.Limit != 50 {
		t.Errorf("non-positive limit should fall back to 50, got %d", cfg.Feed.Limit)
	}
	if !cfg.Policy.AllowReinviteAfterReject || cfg.Policy.EnforceTeamAssignee {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TEAMTASKS_SMTP_HOST", "smtp.example.com")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SMTP.Host != "smtp.example.com" {
		t.Errorf("SMTP.Host = %q", cfg.SMTP.Host)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("feed: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.User = UserConfig{ID: "u1", Email: "alice@x.com"}
	cfg.Database.Path = "/tmp/tt.db"
	cfg.Policy.AllowReinviteAfterReject = true

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.User.ID != "u1" || got.User.Email != "alice@x.com" {
		t.Errorf("User = %+v", got.User)
	}
	if got.Database.Path != "/tmp/tt.db" {
		t.Errorf("Database.Path = %q", got.Database.Path)
	}
	if !got.Policy.AllowReinviteAfterReject || !got.Policy.EnforceTeamAssignee {
		t.Errorf("Policy = %+v", got.Policy)
	}
}
