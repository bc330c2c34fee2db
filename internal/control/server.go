package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/chain"
	"github.com/nullpointer-labs/evmtrader/internal/logx"
	"github.com/nullpointer-labs/evmtrader/internal/metrics"
	"github.com/nullpointer-labs/evmtrader/internal/trade"
)

// ReadyFunc reports whether a startup dependency has become ready, used
// by /healthz (SPEC_FULL.md's additive endpoint: 200 while the feed holds
// a live connection and the chain client's nonce counter has been
// seeded).
type ReadyFunc func() bool

// Server is the local-only HTTP control surface, bound to 127.0.0.1 per
// spec.md §4.8.
type Server struct {
	httpServer *http.Server
	lifecycle  *trade.Lifecycle
	engine     *aggregate.Engine
	chainClnt  *chain.Client
	store      *ConfigStore
	log        *logx.Logger
	startedAt  time.Time
	feedReady  ReadyFunc
	nonceReady ReadyFunc
}

// New builds a control server listening on 127.0.0.1:port. feedReady and
// nonceReady back /healthz; either may be nil, treated as always-ready.
func New(port int, lifecycle *trade.Lifecycle, engine *aggregate.Engine, chainClnt *chain.Client, store *ConfigStore, feedReady, nonceReady ReadyFunc) *Server {
	s := &Server{
		lifecycle:  lifecycle,
		engine:     engine,
		chainClnt:  chainClnt,
		store:      store,
		log:        logx.New("control"),
		startedAt:  time.Now(),
		feedReady:  feedReady,
		nonceReady: nonceReady,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/trades", s.handleTrades)
	mux.HandleFunc("/balances", s.handleBalances)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/resume", s.handleResume)
	mux.HandleFunc("/sell", s.handleSell)
	mux.HandleFunc("/sell-all", s.handleSellAll)
	mux.HandleFunc("/buy", s.handleBuy)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks serving the control API until the server is
// closed, returning http.ErrServerClosed on a clean shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Printf("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Close gracefully shuts down the control server, per spec.md §4.9's
// shutdown sequence.
func (s *Server) Close(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paused":             s.lifecycle.IsPaused(),
		"uptime_seconds":     time.Since(s.startedAt).Seconds(),
		"pair_count":         s.engine.PairCount(),
		"wallet_address":     s.chainClnt.Owner().Hex(),
		"active_trade_count": len(s.lifecycle.ActiveTrades()),
		"summary":            s.lifecycle.Summary(),
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": s.lifecycle.Summary(),
		"open":    s.lifecycle.ActiveTrades(),
		"closed":  s.lifecycle.InactiveTrades(),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.lifecycle.Reconcile(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": s.lifecycle.ActiveTrades(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Get())
	case http.MethodPost:
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.Patch(patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.store.Get())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.lifecycle.Pause()
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.lifecycle.Resume()
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": false})
}

type sellRequest struct {
	Pair    string  `json:"pair"`
	Percent float64 `json:"percent"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Percent <= 0 || req.Percent > 100 {
		writeError(w, http.StatusBadRequest, "percent must be in (0, 100]")
		return
	}

	err := s.lifecycle.ManualSell(r.Context(), req.Pair, int(req.Percent))
	writeManualResult(w, err)
}

func (s *Server) handleSellAll(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	results := s.lifecycle.ManualSellAll(r.Context())
	out := make(map[string]string, len(results))
	for pair, err := range results {
		if err != nil {
			out[pair] = err.Error()
		} else {
			out[pair] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type buyRequest struct {
	Pair      string  `json:"pair"`
	EthAmount float64 `json:"ethAmount"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EthAmount <= 0 {
		writeError(w, http.StatusBadRequest, "ethAmount must be positive")
		return
	}

	err := s.lifecycle.ManualBuy(r.Context(), req.Pair, req.EthAmount)
	writeManualResult(w, err)
}

// writeManualResult maps the manual control-plane sentinel errors to the
// status codes spec.md §4.8's endpoint table specifies.
func writeManualResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	case errors.Is(err, trade.ErrNoTrade), errors.Is(err, trade.ErrPairUnknown):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, trade.ErrLocked), errors.Is(err, trade.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	feedOK := s.feedReady == nil || s.feedReady()
	nonceOK := s.nonceReady == nil || s.nonceReady()
	if !feedOK || !nonceOK {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"feed_ready":  feedOK,
			"nonce_ready": nonceOK,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
