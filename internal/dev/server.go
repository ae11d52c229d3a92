package dev

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/islands"
	"github.com/vango-dev/islands/internal/config"
	"github.com/vango-dev/islands/internal/errors"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Logger receives request and reload logs.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Setup runs on every runtime the server creates, before hydration.
	// It is where stores and directives are defined.
	Setup func(*islands.Runtime)

	// OnReload is called when browsers are reloaded.
	OnReload func(clients int)
}

// Server serves a directory of pages. With server directives enabled each
// page is hydrated once on the server and served in its rendered form;
// with watching enabled, connected browsers reload when a page changes.
type Server struct {
	config     *config.Config
	options    ServerOptions
	logger     *slog.Logger
	watcher    *Watcher
	reload     *ReloadServer
	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:  cfg,
		options: options,
		logger:  logger.With("component", "dev"),
	}
	if cfg.WatchEnabled() {
		s.reload = NewReloadServer(logger)
		s.watcher = NewWatcher(WatcherConfig{
			Paths:  []string{cfg.PagesPath()},
			Logger: logger,
		})
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.reload != nil {
		r.Get(ReloadPath, s.reload.HandleWebSocket)
	}
	r.Get("/*", s.servePage)
	r.Head("/*", s.servePage)
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.config.DevAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.OnChange(s.handleChanges)
		go func() {
			if err := s.watcher.Start(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	s.logger.Info("serving pages",
		"url", s.config.DevURL(),
		"pages", s.config.PagesPath(),
		"serverDirectives", s.config.ServerDirectives(),
		"watch", s.config.WatchEnabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.reload != nil {
		s.reload.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// handleChanges reloads stylesheets when only CSS changed and whole pages
// otherwise.
func (s *Server) handleChanges(changes []Change) {
	cssOnly := true
	var cssPath string
	for _, c := range changes {
		s.logger.Info("changed", "path", c.Path, "type", c.Type)
		if c.Type != ChangeCSS {
			cssOnly = false
		} else if cssPath == "" {
			cssPath = c.Path
		}
	}

	if cssOnly {
		s.reload.NotifyCSS(cssPath)
		return
	}
	s.reload.NotifyReload()
	n := s.reload.ClientCount()
	if s.options.OnReload != nil {
		s.options.OnReload(n)
	}
	s.logger.Info("reloaded browsers", "clients", n)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	root := s.config.PagesPath()
	file, ok := findPage(root, r.URL.Path)
	if !ok {
		http.FileServer(http.Dir(root)).ServeHTTP(w, r)
		return
	}
	body, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.config.ServerDirectives() {
		u := &url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		out, warnings, err := s.Render(r.Context(), u, body)
		if err != nil {
			s.logger.Error("render failed", "page", file, "error", err)
			s.notifyError(err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(warnings) > 0 {
			var b strings.Builder
			for _, warn := range warnings {
				b.WriteString(warn.FormatCompact())
				b.WriteByte('\n')
			}
			s.notifyError(b.String())
		}
		body = out
	}

	if s.reload != nil {
		body = injectScript(body, DevClientScript)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(body)
}

// Render hydrates a page once and returns the resulting markup together
// with the warnings raised on the way.
func (s *Server) Render(ctx context.Context, u *url.URL, body []byte) ([]byte, []*errors.Error, error) {
	var warnings []*errors.Error
	opts := append(islands.FromConfig(s.config),
		islands.WithURL(u),
		islands.WithLogger(s.logger),
		islands.WithWarningHandler(func(e *errors.Error) { warnings = append(warnings, e) }),
	)
	rt, err := islands.Parse(bytes.NewReader(body), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing page: %w", err)
	}
	if s.options.Setup != nil {
		s.options.Setup(rt)
	}
	rt.Hydrate(ctx)
	return []byte(rt.Render()), warnings, nil
}

func (s *Server) notifyError(msg string) {
	if s.reload != nil {
		s.reload.NotifyError(msg)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == ReloadPath {
			return
		}
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// findPage maps a request path to an HTML file below root: "/" and paths
// ending in "/" to their index.html, extensionless paths to name.html or
// name/index.html.
func findPage(root, urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	var candidates []string
	switch {
	case strings.HasSuffix(urlPath, "/") || clean == "/":
		candidates = []string{path.Join(clean, "index.html")}
	case path.Ext(clean) == "":
		candidates = []string{clean + ".html", path.Join(clean, "index.html")}
	case path.Ext(clean) == ".html" || path.Ext(clean) == ".htm":
		candidates = []string{clean}
	}
	for _, c := range candidates {
		file := filepath.Join(root, filepath.FromSlash(c))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return file, true
		}
	}
	return "", false
}

// injectScript inserts script before the last </body>, or appends it.
func injectScript(body []byte, script string) []byte {
	idx := bytes.LastIndex(body, []byte("</body>"))
	if idx == -1 {
		return append(body, script...)
	}
	out := make([]byte, 0, len(body)+len(script))
	out = append(out, body[:idx]...)
	out = append(out, script...)
	return append(out, body[idx:]...)
}
