package handlers

import (
	"net/http"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

type ProductHandler struct {
	catalog *services.CatalogService
	log     logrus.FieldLogger
}

func NewProductHandler(catalog *services.CatalogService, log logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

// List handles GET /products?category=&q=&active=&all=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	all, err := queryBool(r, "all")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	q := r.URL.Query()
	products, err := h.catalog.List(r.Context(), services.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Active:   active,
		All:      all != nil && *all,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, products, "")
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, products, "")
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, cats, "")
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, p, "")
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, p, "product created")
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var patch services.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, p, "product updated")
}

// Delete deactivates the product; sales keep referencing it.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.catalog.Deactivate(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, "product deactivated")
}
