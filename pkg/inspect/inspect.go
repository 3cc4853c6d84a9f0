// Package inspect exposes a store's live state, effect registry, and change
// feed over HTTP for debugging and dashboards.
package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reduct-dev/reduct/pkg/reduct"
)

// Source is the non-generic store surface the inspector reads from.
// *reduct.Store satisfies it for any state and action type.
type Source interface {
	// Snapshot returns the current root state.
	Snapshot() any

	// Effects returns the current effect registry contents.
	Effects() []reduct.EffectStatus

	// NodeCount returns the current node arena size.
	NodeCount() int

	// Changes subscribes to the change-notification stream.
	Changes() (<-chan struct{}, func())
}

// Config configures the inspector server.
type Config struct {
	// Addr is the listen address (default: ":6060").
	Addr string

	// WriteTimeout bounds each WebSocket write (default: 10s).
	WriteTimeout time.Duration

	// PingInterval is the WebSocket heartbeat period (default: 30s).
	PingInterval time.Duration

	// CheckOrigin validates WebSocket upgrade origins.
	// Default: same-origin (the gorilla default).
	CheckOrigin func(r *http.Request) bool

	// Logger is the structured logger (default: slog.Default).
	Logger *slog.Logger
}

// Option configures the inspector server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithWriteTimeout sets the WebSocket write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithPingInterval sets the WebSocket heartbeat period.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = d
	}
}

// WithCheckOrigin sets the WebSocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func defaultConfig() Config {
	return Config{
		Addr:         ":6060",
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Server serves the inspector endpoints:
//
//	GET /healthz   liveness probe
//	GET /state     JSON snapshot of the root state
//	GET /effects   JSON dump of the effect registry
//	GET /metrics   Prometheus exposition (default registry)
//	GET /ws        WebSocket change feed: one JSON snapshot per change signal
type Server struct {
	source   Source
	config   Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer builds an inspector over source.
func NewServer(source Source, opts ...Option) *Server {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "inspect")

	s := &Server{
		source: source,
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/state", s.handleState)
	r.Get("/effects", s.handleEffects)
	r.Get("/ws", s.handleWS)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r

	return s
}

// ServeHTTP lets the inspector mount inside an existing router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the inspector until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("inspector listening", "addr", s.config.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// stateEnvelope is the JSON shape served by /state and pushed over /ws.
type stateEnvelope struct {
	State     any       `json:"state"`
	NodeCount int       `json:"node_count"`
	Time      time.Time `json:"time"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, stateEnvelope{
		State:     s.source.Snapshot(),
		NodeCount: s.source.NodeCount(),
		Time:      time.Now().UTC(),
	})
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	effects := s.source.Effects()
	if effects == nil {
		effects = []reduct.EffectStatus{}
	}
	s.writeJSON(w, effects)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode error", "error", err)
	}
}

// handleWS upgrades the connection and streams one snapshot per change
// signal. Signals are coalesced by the store, so a slow client receives
// fewer, fresher snapshots rather than a growing backlog.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade error", "error", err)
		return
	}

	clientID := uuid.NewString()
	logger := s.logger.With("client_id", clientID)
	logger.Info("feed client connected", "remote", r.RemoteAddr)

	changes, unsubscribe := s.source.Changes()
	done := make(chan struct{})

	// Read loop: drains control frames and detects close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure) {
					logger.Error("read error", "error", err)
				}
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		conn.Close()
		logger.Info("feed client disconnected")
	}()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	// Initial snapshot so the client renders before the first mutation.
	if err := s.writeSnapshot(conn); err != nil {
		logger.Error("write error", "error", err)
		return
	}

	for {
		select {
		case <-changes:
			if err := s.writeSnapshot(conn); err != nil {
				logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteJSON(stateEnvelope{
		State:     s.source.Snapshot(),
		NodeCount: s.source.NodeCount(),
		Time:      time.Now().UTC(),
	})
}
