package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/sagalens"
	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ingest"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxIngestBody bounds a single ingest request.
const maxIngestBody = 8 << 20

// Monitor is the part of the monitor the HTTP server drives.
type Monitor interface {
	ingest.Target
	Stats() domain.Stats
}

// Server exposes a monitor over HTTP.
type Server struct {
	Monitor Monitor
	Hub     *Hub
	History ports.SnapshotStore

	player   *ingest.Player
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves GET /snapshots from store.
func WithHistory(store ports.SnapshotStore) Option {
	return func(s *Server) {
		s.History = store
	}
}

// WithGatherer serves GET /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server for mon, streaming through hub.
func NewServer(mon Monitor, hub *Hub, opts ...Option) *Server {
	s := &Server{
		Monitor: mon,
		Hub:     hub,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.player = ingest.NewPlayer(mon, ingest.WithLogger(s.logger))
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/ingest", s.Ingest)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/snapshots", s.ListSnapshots)
	r.Get("/stats", s.GetStats)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// NewHandler creates a new HTTP handler for the monitor.
func NewHandler(mon Monitor, hub *Hub, opts ...Option) http.Handler {
	return NewServer(mon, hub, opts...).Handler()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Ingest handles POST /ingest. The body is one JSON event, a JSON array of
// events, or JSON Lines when the content type is application/x-ndjson.
// Events are applied in order; the first invalid event stops the batch.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxIngestBody)
	ctx := r.Context()

	var (
		applied int
		err     error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "ndjson") {
		applied, err = s.player.Play(ctx, body)
	} else {
		applied, err = s.applyJSON(ctx, body)
	}

	if err != nil {
		s.logger.WarnContext(ctx, "ingest rejected", "error", err, "applied", applied)
		status := http.StatusBadRequest
		if !errors.Is(err, domain.ErrInvalidEvent) && !errors.Is(err, domain.ErrUnknownEvent) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "applied": applied})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"applied": applied})
}

func (s *Server) applyJSON(ctx context.Context, body io.Reader) (int, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	data = bytes.TrimSpace(data)

	raws := []json.RawMessage{data}
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
		}
	}

	for i, raw := range raws {
		ev, err := ingest.Decode(raw)
		if err != nil {
			return i, err
		}
		if err := s.player.Apply(ctx, ev); err != nil {
			return i, err
		}
	}
	return len(raws), nil
}

// SubscribeEvents handles the GET /events request (SSE).
// The first client to connect triggers the flush of buffered snapshots.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	ch, cancel := s.Hub.Subscribe(r.Context())
	defer cancel()
	s.logger.InfoContext(r.Context(), "SSE client connected", "clients", s.Hub.Clients())

	for {
		select {
		case <-r.Context().Done():
			s.logger.InfoContext(r.Context(), "SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ListSnapshots handles GET /snapshots?limit=N.
func (s *Server) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, []domain.Snapshot{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	snaps, err := s.History.List(r.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list snapshots", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Monitor.Stats())
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "sagalens-http",
		"version": strings.TrimSpace(sagalens.Version),
		"clients": s.Hub.Clients(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
