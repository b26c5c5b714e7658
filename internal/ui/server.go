// Package ui serves the markup document in a browser and drives its
// grids from the server. Every browser session gets its own grid
// manager; rendered layouts and fragment changes are pushed to the page
// over a datastar event stream.
package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	intconfig "github.com/leapstack-labs/datagrid/internal/config"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/internal/ui/notifier"
	"github.com/leapstack-labs/datagrid/internal/ui/resources"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/leapstack-labs/datagrid/pkg/markup"
	"golang.org/x/sync/errgroup"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 100 * time.Millisecond

// Config holds configuration for the UI server.
type Config struct {
	// Project is the markup path, URL options and per-grid settings.
	Project intconfig.ProjectConfig
	// Endpoint is the base URL relative grid sources resolve against.
	Endpoint string
	// Store records fragments and saved views (optional).
	Store         state.Store
	Port          int
	Watch         bool
	SessionSecret string
	// SecureCookies marks the session cookie Secure. Leave it off when
	// the server is reached over plain http.
	SecureCookies bool
	// ScriptURL is the datastar client URL (defaults to
	// resources.DefaultScriptURL).
	ScriptURL string
	// Fetcher replaces the HTTP fetcher (optional).
	Fetcher datagrid.Fetcher
	Logger  *slog.Logger
}

// Server is the UI server.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	notifier     *notifier.Notifier
	sessions     *registry
	endpoint     *url.URL
	logger       *slog.Logger

	mu     sync.RWMutex
	source []byte
	ctx    context.Context
}

// NewServer reads the markup document and creates a server.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is required")
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.SecureCookies
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:          cfg,
		sessionStore: sessionStore,
		notifier:     notifier.New(),
		logger:       logger,
		ctx:          context.Background(),
	}
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("endpoint must be an absolute URL: %q", cfg.Endpoint)
		}
		s.endpoint = u
	}
	if s.cfg.ScriptURL == "" {
		s.cfg.ScriptURL = resources.DefaultScriptURL
	}
	s.sessions = newRegistry(s.newSession, logger)

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads and checks the markup document.
func (s *Server) load() error {
	src, err := os.ReadFile(s.cfg.Project.Markup)
	if err != nil {
		return fmt.Errorf("read markup: %w", err)
	}
	doc, err := markup.Parse(bytes.NewReader(src))
	if err != nil {
		return err
	}
	if len(doc.Grids()) == 0 {
		return fmt.Errorf("markup declares no grids: %s", s.cfg.Project.Markup)
	}

	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
	return nil
}

// markupSource returns the current markup document.
func (s *Server) markupSource() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Server) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.setupRoutes(r)
	return r
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port))

	eg, egctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.ctx = egctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watchMarkup(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		s.notifier.Broadcast(notifier.Event{Kind: notifier.KindShutdown})
		s.sessions.closeAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for stream events.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchMarkup reloads the markup document when it changes.
func (s *Server) watchMarkup(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	path, err := filepath.Abs(s.cfg.Project.Markup)
	if err != nil {
		return err
	}
	// Editors replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		s.logger.Error("failed to watch markup directory", "error", err)
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Debug("markup changed, reloading", "file", path)
				if err := s.reload(); err != nil {
					s.logger.Error("reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// reload re-reads the markup, drops every session and tells open pages
// to reload. A document that fails to load keeps the previous one.
func (s *Server) reload() error {
	if err := s.load(); err != nil {
		return err
	}
	s.sessions.closeAll()
	s.notifier.Broadcast(notifier.Event{Kind: notifier.KindReload, Path: s.cfg.Project.Markup})
	return nil
}

// downloadURL resolves a grid's export URL against the data endpoint.
func (s *Server) downloadURL(g *datagrid.Grid, format string) (string, error) {
	u, err := url.Parse(g.DownloadURL(format))
	if err != nil {
		return "", err
	}
	if s.endpoint != nil {
		u = s.endpoint.ResolveReference(u)
	}
	return u.String(), nil
}
