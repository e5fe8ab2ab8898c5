package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/event"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
)

// DefaultMaxBodyBytes bounds request bodies. Page events carry whole documents.
const DefaultMaxBodyBytes = 32 << 20

// Server serves the HTTP API for one Coordinator.
type Server struct {
	mu    sync.Mutex
	coord *coordinator.Coordinator

	decoder  *event.Decoder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   *chi.Mux
	hub      *hub
	upgrader websocket.Upgrader

	maxBodyBytes    int64
	pruneInterval   time.Duration
	shutdownTimeout time.Duration

	unsubscribe []func()
	closing     chan struct{}
	closeOnce   sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for requests and background work.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves m on /metrics and counts rejected documents.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithPruneInterval sets how often Run applies data retention. Zero disables it.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pruneInterval = d
	}
}

// WithShutdownTimeout bounds graceful shutdown in Run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a server for coord and subscribes the stream to its alerts
// and timeline. The server owns access to coord from now on.
func New(coord *coordinator.Coordinator, opts ...Option) (*Server, error) {
	decoder, err := event.NewDecoder()
	if err != nil {
		return nil, err
	}

	s := &Server{
		coord:           coord,
		decoder:         decoder,
		maxBodyBytes:    DefaultMaxBodyBytes,
		pruneInterval:   config.DefaultPruneInterval,
		shutdownTimeout: config.DefaultShutdownTimeout,
		closing:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.hub = newHub(s.logger)

	s.unsubscribe = append(s.unsubscribe,
		coord.SubscribeAlerts(func(alert model.Alert) error {
			s.hub.broadcast(streamMessage{Type: streamAlert, Alert: &alert})
			return nil
		}),
		coord.SubscribeTimeline(func(entry fingerprint.Entry) error {
			s.hub.broadcast(streamMessage{Type: streamTimeline, Entry: &entry})
			return nil
		}),
	)

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.postEvents)
		r.Get("/report", s.getReport)
		r.Get("/export", s.getExport)
		r.Post("/import", s.postImport)
		r.Delete("/data", s.deleteData)
		r.Get("/timeline/{origin}", s.getTimeline)
		r.Get("/forensics", s.getForensics)
		r.Get("/exfiltration", s.getExfiltration)
		r.Get("/alerts", s.getAlerts)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Get("/stream", s.stream)
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// IngestResult reports what happened to a batch of events.
type IngestResult struct {
	Accepted    int `json:"accepted"`
	Unsupported int `json:"unsupported"`
	Invalid     int `json:"invalid"`
}

// Ingest hands events to the coordinator in order.
func (s *Server) Ingest(ctx context.Context, events []event.Event) IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result IngestResult
	for _, ev := range events {
		if err := s.coord.Handle(ctx, ev); err != nil {
			if errors.Is(err, coordinator.ErrUnsupportedEvent) {
				result.Unsupported++
				continue
			}
			s.logger.WarnContext(ctx, "event not handled", "kind", ev.Kind(), "error", err)
			continue
		}
		result.Accepted++
	}
	return result
}

// Report generates the current surveillance report.
func (s *Server) Report() *model.SurveillanceReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord.GenerateReport()
}

// Prune applies data retention and returns the number of removed timeline entries.
func (s *Server) Prune(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord.PruneExpired(ctx)
}

// Close disconnects stream clients and detaches from the coordinator.
// It does not close the coordinator.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.mu.Lock()
		for _, cancel := range s.unsubscribe {
			cancel()
		}
		s.mu.Unlock()
	})
}

// Run serves on addr until ctx is done, pruning expired data periodically.
// It shuts down gracefully and returns nil on a clean stop.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve on %s: %w", addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.pruneInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if removed := s.Prune(ctx); removed > 0 {
						s.logger.Info("pruned expired timeline entries", "removed", removed)
					}
				}
			}
		})
	}

	return g.Wait()
}

// requestLogger logs every request at debug level with its status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
