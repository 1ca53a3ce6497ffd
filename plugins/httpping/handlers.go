package httpping

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Active          bool       `json:"active"`
	State           string     `json:"state"`
	Handle          string     `json:"handle,omitempty"`
	TimeoutMs       int64      `json:"timeout_ms,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	LastPing        *time.Time `json:"last_ping,omitempty"`
	SinceLastPingMs int64      `json:"since_last_ping_ms,omitempty"`
	Triggered       bool       `json:"triggered"`
}

func (p *Plugin) handlePing(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	pinger := p.pinger
	p.mu.RUnlock()

	if pinger == nil {
		p.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: watchdog.ErrNotRunning.Error()})
		return
	}

	if err := pinger.Ping(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, watchdog.ErrNotRunning) {
			status = http.StatusConflict
		}
		p.writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Plugin) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := p.snapshot()
	if !ok {
		p.writeJSON(w, http.StatusOK, statusResponse{State: st.State.String()})
		return
	}

	now := time.Now()
	p.writeJSON(w, http.StatusOK, statusResponse{
		Active:          true,
		State:           st.State.String(),
		Handle:          st.Handle.String(),
		TimeoutMs:       st.Timeout.Milliseconds(),
		StartedAt:       &st.StartedAt,
		LastPing:        &st.LastPing,
		SinceLastPingMs: st.SinceLastPing(now).Milliseconds(),
		Triggered:       st.Triggered,
	})
}

func (p *Plugin) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st, ok := p.snapshot()
	switch {
	case !ok:
		p.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stopped"})
	case st.Triggered:
		p.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "triggered"})
	default:
		p.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

func (p *Plugin) snapshot() (watchdog.Status, bool) {
	p.mu.RLock()
	status := p.status
	p.mu.RUnlock()

	if status == nil {
		return watchdog.Status{State: watchdog.StateStopped}, false
	}
	return status()
}

func (p *Plugin) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.mu.RLock()
		logger := p.logger
		p.mu.RUnlock()
		logger.Error("encode response", log.Err(err))
	}
}
