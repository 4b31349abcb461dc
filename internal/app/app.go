// Package app wires configuration into the workflow components.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/teamtasks/internal/assign"
	"github.com/nhle/teamtasks/internal/credential"
	"github.com/nhle/teamtasks/internal/feed"
	"github.com/nhle/teamtasks/internal/mailer"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/internal/store"
	"github.com/nhle/teamtasks/internal/team"
)

// App holds the wired components for one process.
type App struct {
	Config      *model.AppConfig
	Log         *zap.Logger
	Store       *store.SQLiteStore
	Broker      notify.Broker
	Sender      mailer.Sender
	Team        *team.Manager
	Coordinator *assign.Coordinator

	redis *redis.Client
}

// NewLogger builds a zap logger from the log settings.
func NewLogger(cfg model.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// New opens the store and builds every component described by cfg.
// Without smtp.host, emails are only logged; without redis.addr, pushed
// notifications stay in-process.
func New(ctx context.Context, cfg *model.AppConfig, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(cfg.Database.Path); cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, Store: s}

	a.Sender, err = newSender(cfg.SMTP, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Redis.Addr, err)
		}
		a.Broker = notify.NewRedisBroker(a.redis, log)
	} else {
		a.Broker = notify.NewHub()
	}

	dispatcher := notify.NewDispatcher(s, a.Broker, a.Sender, log)

	a.Team = team.NewManager(s, dispatcher, team.Options{
		Policy:   team.Policy{AllowReinviteAfterReject: cfg.Policy.AllowReinviteAfterReject},
		SiteName: cfg.SiteName,
		AppURL:   cfg.AppURL,
		Logger:   log,
	})
	a.Coordinator = assign.NewCoordinator(s, a.Team, dispatcher, assign.Options{
		Policy:   assign.Policy{EnforceTeamAssignee: cfg.Policy.EnforceTeamAssignee},
		SiteName: cfg.SiteName,
		AppURL:   cfg.AppURL,
		Logger:   log,
	})
	return a, nil
}

// Feed creates a notification feed for user.
func (a *App) Feed(user model.Identity) *feed.Feed {
	return feed.New(a.Store, user, feed.Options{
		Limit:      a.Config.Feed.Limit,
		Interval:   a.Config.Feed.PollInterval(),
		Subscriber: a.Broker,
		Logger:     a.Log,
	})
}

// Close releases the store and the Redis client.
func (a *App) Close() error {
	var err error
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	if a.Store != nil {
		err = multierr.Append(err, a.Store.Close())
	}
	return err
}

func newSender(cfg model.SMTPConfig, log *zap.Logger) (mailer.Sender, error) {
	if cfg.Host == "" {
		return mailer.LogSender{Log: log}, nil
	}

	password, err := credential.SMTPPassword(cfg.Password)
	if err != nil {
		// A broken keyring should not block the workflow; sends will fail
		// authentication and be logged.
		log.Warn("reading smtp password from keyring failed", zap.Error(err))
	}

	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Username:       cfg.Username,
		Password:       password,
		From:           cfg.From,
		TLS:            cfg.TLS,
		ArchiveMailbox: cfg.ArchiveMailbox,
		IMAPHost:       cfg.IMAPHost,
		IMAPPort:       cfg.IMAPPort,
	}, log), nil
}
