// Package web provides the HTTP server and pages for the stats application.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-stats/internal/auth"
	"github.com/justestif/go-spotify-stats/internal/config"
	"github.com/justestif/go-spotify-stats/internal/session"
	spotifyapi "github.com/justestif/go-spotify-stats/internal/spotify"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Config      *config.Config
	Sessions    session.Store
	Logger      *logrus.Logger
	TemplatesFS fs.FS
	StaticFS    fs.FS
}

// Server is the HTTP server for the web application.
type Server struct {
	router chi.Router
	server *http.Server
	log    *logrus.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	creds := cfg.Config.Credentials
	authenticator := auth.NewAuthenticator(creds.ClientID, creds.ClientSecret, creds.RedirectURI)
	connector := spotifyapi.NewConnector(authenticator)

	flow := auth.NewController(authenticator, connector,
		auth.WithDefaultPicture(cfg.Config.Profile.DefaultPicture),
		auth.WithLogger(cfg.Logger),
	)

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	connect := func(ctx context.Context, token *oauth2.Token) StatsClient {
		return connector.Connect(ctx, token)
	}
	handlers := NewHandlers(flow, cfg.Sessions, connect, templates, cfg.Logger)

	router := NewRouter(handlers, cfg.StaticFS, cfg.Logger)

	return &Server{
		router: router,
		log:    cfg.Logger,
		server: &http.Server{
			Addr:         cfg.Config.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Config.ReadTimeout(),
			WriteTimeout: cfg.Config.WriteTimeout(),
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// NewRouter wires middleware and routes for the handlers.
func NewRouter(h *Handlers, staticFS fs.FS, log logrus.FieldLogger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))

	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	// Pages
	router.Get("/", h.Home)
	router.Get("/top/tracks", h.TopTracks)
	router.Get("/top/artists", h.TopArtists)
	router.Get("/recents", h.Recents)

	// Auth routes
	router.Get("/login", h.Login)
	router.Get("/logout", h.Logout)
	router.Get("/callback", h.Callback)

	return router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.server.Addr).Infof("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info("Server stopped")
	return nil
}

// requestLogger logs one entry per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
				}).Info("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
