// Package httpapi exposes the analysis service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/rs/zerolog"

	"github.com/chess-tools/stockfishd/internal/cache"
)

// Analyzer is the coordinator surface the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, fen string) (cache.Result, error)
	Restarts() uint64
}

// Handler serves the analysis endpoints.
type Handler struct {
	analyzer   Analyzer
	cache      *cache.Cache
	engineName string
	log        zerolog.Logger
}

// NewRouter wires the endpoints and middleware. engineName is reported by
// /health; it is captured at startup and never re-probed.
func NewRouter(log zerolog.Logger, analyzer Analyzer, c *cache.Cache, engineName string) http.Handler {
	h := &Handler{
		analyzer:   analyzer,
		cache:      c,
		engineName: engineName,
		log:        log,
	}

	mux := http.NewServeMux()
	mux.Handle("/analyze", http.HandlerFunc(h.analyze))
	mux.Handle("/health", http.HandlerFunc(h.health))
	mux.Handle("/stats", http.HandlerFunc(h.stats))

	// pprof endpoints
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, mux)))
}

// analyze answers POST {"fen": ...} with a best move and evaluation.
// Missing or unparseable input is the caller's fault (400); everything
// else, engine unavailability and FEN errors that pass the presence check
// included, is a 500.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		FEN string `json:"fen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.FEN == "" {
		writeError(w, http.StatusBadRequest, "no FEN provided")
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), body.FEN)
	if err != nil {
		h.log.Error().Err(err).Str("fen", body.FEN).Msg("analyze failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, res)
}

// health reports liveness. It does not probe the engine.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"engine": h.engineName,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s := h.cache.Stats()
	writeJSON(w, map[string]any{
		"cache_hits":      s.Hits,
		"cache_misses":    s.Misses,
		"cache_size":      s.Size,
		"cache_capacity":  s.Capacity,
		"engine_restarts": h.analyzer.Restarts(),
	})
}
