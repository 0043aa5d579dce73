// Package statusserver exposes a small HTTP + websocket surface for
// watching a dualnet.Factory's live batching statistics, grounded on
// this codebase's other chi-routed, gorilla/websocket-driven services.
package statusserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chsigg/minigo/internal/dualnet"
)

// pollInterval is how often a connected websocket client receives a
// fresh stats snapshot.
const pollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves /stats (one-shot JSON) and /ws (a pushed stream of
// snapshots) for a single dualnet.Factory.
type Server struct {
	factory *dualnet.Factory
	log     *zap.SugaredLogger
	router  chi.Router
}

// New builds a Server around factory. log may be nil.
func New(factory *dualnet.Factory, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{factory: factory, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/stats", s.handleStats)
	r.Get("/ws", s.handleWS)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

type statsSnapshot struct {
	Runs            int     `json:"runs"`
	RunSum          int     `json:"runSum"`
	Pending         int     `json:"pending"`
	AverageBatch    float64 `json:"averageBatchSize"`
	ObservedAtMilli int64   `json:"observedAtMilli"`
}

func snapshot(stats dualnet.SchedulerStats, now time.Time) statsSnapshot {
	return statsSnapshot{
		Runs:            stats.Runs,
		RunSum:          stats.RunSum,
		Pending:         stats.Pending,
		AverageBatch:    stats.AverageBatchSize(),
		ObservedAtMilli: now.UnixMilli(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot(s.factory.Stats(), time.Now()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(snapshot(s.factory.Stats(), time.Now())); err != nil {
			s.log.Debugw("websocket write failed, closing", "err", err)
			return
		}
	}
}

// ListenAndServe starts the status server on addr. It blocks until the
// listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Infow("status server listening", "addr", addr)
	return http.ListenAndServe(addr, s)
}
