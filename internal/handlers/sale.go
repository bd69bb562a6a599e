package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/diewo77/pharmacy-pos/auth"
	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SaleHandler struct {
	sales   *services.SaleService
	reports *services.ReportService
	log     logrus.FieldLogger
}

func NewSaleHandler(sales *services.SaleService, reports *services.ReportService, log logrus.FieldLogger) *SaleHandler {
	return &SaleHandler{sales: sales, reports: reports, log: log}
}

type saleRequest struct {
	ClientID      *uint                `json:"client_id"`
	Items         []services.SaleItem  `json:"items"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

// Create registers a sale on behalf of the authenticated seller.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	var req saleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	sale, err := h.sales.Register(r.Context(), services.RegisterSaleInput{
		ClientID:      req.ClientID,
		UserID:        uid,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, sale, "sale registered")
}

func (h *SaleHandler) filter(r *http.Request) (services.SaleFilter, error) {
	var f services.SaleFilter
	var err error
	if f.From, err = queryTime(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = queryTime(r, "to", true); err != nil {
		return f, err
	}
	if f.ClientID, err = queryUint(r, "client_id"); err != nil {
		return f, err
	}
	if f.UserID, err = queryUint(r, "user_id"); err != nil {
		return f, err
	}
	if status := models.SaleStatus(r.URL.Query().Get("status")); status != "" {
		if status != models.SaleCompleted && status != models.SaleCancelled {
			return f, invalid("status", "invalid_choice")
		}
		f.Status = status
	}
	return f, nil
}

// List handles GET /sales?from=&to=&status=&client_id=&user_id=.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	sales, err := h.sales.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, sales, "")
}

func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	sale, err := h.sales.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, sale, "")
}

func (h *SaleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Stats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, stats, "")
}

// Export streams the filtered sales as an xlsx workbook.
func (h *SaleHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var buf bytes.Buffer
	if err := h.reports.ExportSales(r.Context(), f, &buf); err != nil {
		writeError(w, h.log, err)
		return
	}
	name := fmt.Sprintf("sales-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
