// Package server exposes the decision engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vwap-reversion-bot/internal/interfaces"
	"vwap-reversion-bot/internal/logger"
	"vwap-reversion-bot/internal/metrics"
	"vwap-reversion-bot/internal/state"
	"vwap-reversion-bot/internal/store"
	"vwap-reversion-bot/internal/types"
)

const maxTickBytes = 1 << 16

type Server struct {
	httpServer *http.Server
	engine     interfaces.Engine
	states     *state.Store
	hub        *Hub
	startedAt  time.Time
}

func New(cfg *store.Config, eng interfaces.Engine, states *state.Store, hub *Hub) *Server {
	s := &Server{
		engine:    eng,
		states:    states,
		hub:       hub,
		startedAt: time.Now(),
	}
	readHeader := cfg.Server.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeader,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decide", s.handleDecide)
	mux.HandleFunc("GET /state/{symbol}", s.handleState)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}
	return requestID(mux)
}

// requestID tags each request so its log lines can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	logger.Info(ctx, "HTTP server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "HTTP server stopped", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// POST /decide: one tick in, one decision out.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var tick types.Tick
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTickBytes)).Decode(&tick); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := tick.Validate(); err != nil {
		logger.Anomaly(r.Context(), tick.SymbolName, "invalid_tick",
			"error", err.Error(), "request_id", w.Header().Get("X-Request-ID"))
		metrics.Anomalies.WithLabelValues("invalid_tick").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Decide(r.Context(), tick))
}

// GET /state/{symbol}
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sym := r.PathValue("symbol")
	st, ok := s.states.Snapshot(sym)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+sym)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"uptime_s": int(time.Since(s.startedAt).Seconds()),
		"symbols":  s.states.Symbols(),
	}
	if s.hub != nil {
		resp["stream_clients"] = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}
