package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

var notReady atomic.Bool

// SetReady toggles the readiness gate. Graceful shutdown flips it off so load
// balancers drain traffic before the listener closes.
func SetReady(ready bool) {
	notReady.Store(!ready)
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	RedisTimeout time.Duration
	// Invoices reports the number of invoices held by the registry, included
	// in the readiness payload for operator visibility.
	Invoices func() int
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if notReady.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); err != nil {
		redisStatus = err.Error()
	}
	status := map[string]any{
		"redis": redisStatus,
	}
	if h.Invoices != nil {
		status["invoices"] = h.Invoices()
	}
	w.Header().Set("Content-Type", "application/json")
	if redisStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
