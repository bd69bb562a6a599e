package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

type DashboardHandler struct {
	reports *services.ReportService
	log     logrus.FieldLogger
}

func NewDashboardHandler(reports *services.ReportService, log logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{reports: reports, log: log}
}

func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, d, "")
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler reports liveness and the state of named dependencies.
type HealthHandler struct {
	checks map[string]Check
	log    logrus.FieldLogger
}

func NewHealthHandler(checks map[string]Check, log logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

// Live always answers 200 while the process serves requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}

// Ready answers 503 when any dependency check fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.WithError(err).WithField("check", name).Warn("health check failed")
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}
	if !healthy {
		httpx.Fail(w, http.StatusServiceUnavailable, "unhealthy", "dependency check failed", status)
		return
	}
	httpx.OK(w, http.StatusOK, status, "")
}
