package api

import (
	"context"
	"net/http"
	"time"

	"github.com/malwarebo/invoicer/monitoring"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

var startTime = time.Now()

// HealthHandler reports liveness along with a ping of each dependency. The
// database is required; anything else only degrades the status.
type HealthHandler struct {
	database Pinger
	optional map[string]Pinger
}

func CreateHealthHandler(database Pinger) *HealthHandler {
	return &HealthHandler{
		database: database,
		optional: make(map[string]Pinger),
	}
}

func (h *HealthHandler) AddCheck(name string, p Pinger) {
	h.optional[name] = p
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Checks:    make(map[string]string),
	}
	status := http.StatusOK

	if err := h.database.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		response.Checks["database"] = "ok"
	}

	for name, p := range h.optional {
		if err := p.Ping(ctx); err != nil {
			response.Checks[name] = err.Error()
			if status == http.StatusOK {
				response.Status = "degraded"
			}
			continue
		}
		response.Checks[name] = "ok"
	}

	writeJSON(w, status, response)
}

// HandleMetrics serves the in-process counters collected since startup.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, monitoring.Default().Snapshot())
}
