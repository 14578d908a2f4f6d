package main

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-spotify-stats/internal/config"
	"github.com/justestif/go-spotify-stats/internal/db"
	"github.com/justestif/go-spotify-stats/internal/session"
	"github.com/justestif/go-spotify-stats/internal/web"
	webfs "github.com/justestif/go-spotify-stats/web"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log := cfg.NewLogger()
	log.WithFields(cfg.LogFields()).Info("configuration loaded")
	if cfg.GeneratedSecret {
		log.Warn("no session secret configured; sessions will not survive a restart")
	}

	sessions, closeStore, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Config:      cfg,
		Sessions:    sessions,
		Logger:      log,
		TemplatesFS: templates,
		StaticFS:    static,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// openSessionStore builds the configured session backend. The returned
// func releases any resources the backend holds.
func openSessionStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (session.Store, func(), error) {
	opts := []session.Option{
		session.WithTTL(cfg.SessionTTL()),
		session.WithSecureCookie(cfg.Session.SecureCookie),
	}
	noop := func() {}

	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(opts...), noop, nil

	case config.BackendPostgres:
		database, err := db.New(ctx, cfg.Session.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		log.Info("using postgres session store")
		return session.NewPostgresStore(database.Sessions(), opts...), database.Close, nil

	default:
		store, err := session.NewCookieStore([]byte(cfg.Session.Secret), opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}
