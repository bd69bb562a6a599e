package handlers

import (
	"net/http"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

type AlertHandler struct {
	alerts *services.AlertService
	log    logrus.FieldLogger
}

func NewAlertHandler(alerts *services.AlertService, log logrus.FieldLogger) *AlertHandler {
	return &AlertHandler{alerts: alerts, log: log}
}

// List handles GET /alerts?read=&kind=&product_id=.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	read, err := queryBool(r, "read")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	productID, err := queryUint(r, "product_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	kind := models.AlertKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != models.AlertLowStock && kind != models.AlertNearExpiry {
		writeError(w, h.log, invalid("kind", "invalid_choice"))
		return
	}
	alerts, err := h.alerts.List(r.Context(), services.AlertFilter{Read: read, Kind: kind, ProductID: productID})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, alerts, "")
}

// Scan re-evaluates every active product.
func (h *AlertHandler) Scan(w http.ResponseWriter, r *http.Request) {
	created, err := h.alerts.Scan(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int{"alerts_created": created}, "scan completed")
}

func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	a, err := h.alerts.MarkRead(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, a, "alert marked as read")
}

func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.alerts.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, "alert deleted")
}
