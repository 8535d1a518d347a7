// Package worker provides the HTTP service for promptvault: file imports with
// live progress, and the prompt library API.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/config"
	"github.com/thebtf/promptvault/internal/ingest"
	"github.com/thebtf/promptvault/internal/library"
	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/internal/normalize"
	"github.com/thebtf/promptvault/internal/worker/sse"
)

// ShutdownTimeout bounds how long Run waits for requests and running imports
// after its context ends.
const ShutdownTimeout = 15 * time.Second

// Service is the worker HTTP service.
type Service struct {
	startTime      time.Time
	config         *config.Config
	pipeline       *ingest.Pipeline
	library        *library.Service
	metrics        *metrics.Metrics
	sseBroadcaster *sse.Broadcaster
	jobs           *jobRegistry
	router         chi.Router
	allowedExt     map[string]bool
	version        string
	imports        sync.WaitGroup
	ready          atomic.Bool
}

// NewService wires the routes. The service reports ready once Run listens.
func NewService(version string, cfg *config.Config, pipeline *ingest.Pipeline, lib *library.Service, m *metrics.Metrics) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{
		version:        version,
		config:         cfg,
		pipeline:       pipeline,
		library:        lib,
		metrics:        m,
		sseBroadcaster: sse.NewBroadcaster(),
		jobs:           newJobRegistry(maxJobs),
		router:         chi.NewRouter(),
		startTime:      time.Now(),
		allowedExt:     make(map[string]bool),
	}
	for _, ext := range cfg.ImportExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.allowedExt[ext] = true
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/version", s.handleVersion)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(s.requireUser)

		r.Get("/api/events", s.handleEvents)

		r.Post("/api/imports", s.handleCreateImport)
		r.Get("/api/imports", s.handleListImports)
		r.Get("/api/imports/{id}", s.handleGetImport)

		r.Get("/api/prompts", s.handleListPrompts)
		r.Post("/api/prompts", s.handleAddPrompt)
		r.Delete("/api/prompts", s.handleDeleteAllPrompts)
		r.Get("/api/prompts/{id}", s.handleGetPrompt)
		r.Delete("/api/prompts/{id}", s.handleDeletePrompt)
		r.Post("/api/prompts/{id}/visualize", s.handleVisualize)
		r.Post("/api/prompts/{id}/enhance", s.handleEnhance)

		r.Get("/api/tags", s.handleTags)
	})
}

// Run listens on the configured address until ctx ends, then shuts down and
// waits for running imports.
func (s *Service) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.WorkerHost, fmt.Sprint(s.config.WorkerPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.ready.Store(true)
	log.Info().Str("addr", ln.Addr().String()).Str("version", s.version).Msg("Worker listening")

	select {
	case err := <-errCh:
		s.ready.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		s.imports.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutting down with imports still running")
	}
	log.Info().Msg("Worker stopped")
	return err
}

// ReloadRules swaps the cleaning rules used by later imports and adds.
func (s *Service) ReloadRules(path string) error {
	n, err := normalize.Load(path)
	if err != nil {
		return err
	}
	s.pipeline.SetNormalizer(n)
	log.Info().Str("path", path).Strs("rules", n.Rules()).Msg("Cleaning rules reloaded")
	return nil
}

// allowed reports whether a file may be uploaded.
func (s *Service) allowed(fileName string) bool {
	if !s.pipeline.Supports(fileName) {
		return false
	}
	if len(s.allowedExt) == 0 {
		return true
	}
	return s.allowedExt[strings.ToLower(filepath.Ext(fileName))]
}

// startImport runs one import in the background. The import is detached from
// the request so a closed browser tab does not abort it.
func (s *Service) startImport(ctx context.Context, job *Job, data []byte) {
	s.jobs.add(job)
	s.imports.Add(1)

	obs := ingest.ObserverFunc(func(e ingest.Event) {
		s.jobs.apply(e)
		s.sseBroadcaster.Publish(job.UserID, "import", e)
	})

	go func() {
		defer s.imports.Done()
		rep, err := s.pipeline.Run(ctx, ingest.Request{
			JobID:    job.ID,
			UserID:   job.UserID,
			FileName: job.FileName,
			Data:     data,
		}, obs)
		if err != nil {
			log.Warn().Err(err).Str("job", job.ID).Msg("Import ended in error")
		}
		s.jobs.finish(job.ID, rep, time.Now())
	}()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
