package handlers

import (
	"context"
	"net/http"
	"time"

	"bytepad-backend/internal/domain"
	"bytepad-backend/pkg/api"
)

// DocumentSource is the loaded local store.
type DocumentSource interface {
	Get() (*domain.Document, error)
}

// LocalProcessProbe reports whether the desktop app answers.
type LocalProcessProbe interface {
	Available(ctx context.Context) bool
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	store     DocumentSource
	local     LocalProcessProbe
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. local may be nil.
func NewHealthHandler(store DocumentSource, local LocalProcessProbe, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		local:     local,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck represents an individual component health check.
type HealthCheck struct {
	Status      string        `json:"status"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Health reports the store state and whether the desktop app is reachable.
// An unreachable app only degrades the status since commands fall back to
// the file store.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{"store": h.checkStore()}
	overall := StatusHealthy
	if checks["store"].Status != StatusHealthy {
		overall = StatusUnhealthy
	}

	if h.local != nil {
		check := h.checkLocalProcess(r.Context())
		checks["local_process"] = check
		if overall == StatusHealthy && check.Status != StatusHealthy {
			overall = StatusDegraded
		}
	}

	status := http.StatusOK
	if overall == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	api.Success(w, status, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

func (h *HealthHandler) checkStore() HealthCheck {
	start := time.Now()
	check := HealthCheck{Status: StatusHealthy, LastChecked: start}
	doc, err := h.store.Get()
	check.Duration = time.Since(start)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Error = err.Error()
		return check
	}
	check.Detail = doc.LastModified
	return check
}

func (h *HealthHandler) checkLocalProcess(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Status: StatusHealthy, LastChecked: start}
	if !h.local.Available(ctx) {
		check.Status = StatusDegraded
		check.Detail = "desktop app not reachable, using file store"
	}
	check.Duration = time.Since(start)
	return check
}
