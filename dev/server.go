package dev

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"tractor.dev/nannboy"
	"tractor.dev/nannboy/config"
)

// ReloadPath is where pages open their reload socket.
const ReloadPath = "/.reload"

// Server renders the page fresh for every request.
type Server struct {
	Packager *nannboy.Packager
	Hub      *Hub
	Log      *slog.Logger
}

func NewServer(p *nannboy.Packager) *Server {
	p.Reload = ReloadPath
	return &Server{Packager: p, Hub: NewHub(), Log: p.Log}
}

func (s *Server) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ReloadPath, s.Hub.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data, _, err := s.Packager.Render(r.Context())
		if err != nil {
			s.log().Warn("render failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	})
	return s.loggerMiddleware(isolationMiddleware(mux))
}

// Files lists the inputs the page is currently built from, relative to
// the packager root.
func (s *Server) Files() []string {
	inputs, err := s.Packager.Resolve(context.Background())
	if err != nil {
		return nil
	}
	var paths []string
	for _, in := range inputs {
		rel, err := filepath.Rel(s.root(), in.Path)
		if err != nil {
			continue
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths
}

func (s *Server) root() string {
	if s.Packager.Root == "" {
		return "."
	}
	return s.Packager.Root
}

// Watcher watches the current inputs and the search directories and
// broadcasts a reload on every change.
func (s *Server) Watcher() *Watcher {
	cfg := s.Packager.Config
	if cfg == nil {
		cfg = config.Default()
	}
	paths := s.Files()
	for _, dir := range cfg.Search {
		paths = append(paths, path.Clean(filepath.ToSlash(dir)))
	}
	return &Watcher{
		FS:    os.DirFS(s.root()),
		Names: []string{cfg.Inputs.Template, cfg.Inputs.Glue, cfg.Inputs.Payload},
		Paths: paths,
		Log:   s.Log,
		OnChange: func(string) {
			s.Hub.Broadcast(ReloadMessage)
		},
	}
}

// Watch reloads connected pages whenever an input changes, until ctx is
// done.
func (s *Server) Watch(ctx context.Context) error {
	return s.Watcher().Run(ctx)
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log().Info(r.Method+" "+r.URL.Path, "took", time.Since(start))
	})
}

// isolationMiddleware makes the page cross-origin isolated so engines built
// with threads get SharedArrayBuffer.
func isolationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		next.ServeHTTP(w, r)
	})
}
