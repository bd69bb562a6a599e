package handlers

import (
	"net/http"

	"github.com/diewo77/pharmacy-pos/httpx"
	"github.com/diewo77/pharmacy-pos/internal/services"
	"github.com/sirupsen/logrus"
)

type ClientHandler struct {
	clients *services.ClientService
	log     logrus.FieldLogger
}

func NewClientHandler(clients *services.ClientService, log logrus.FieldLogger) *ClientHandler {
	return &ClientHandler{clients: clients, log: log}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, clients, "")
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	c, err := h.clients.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, c, "")
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	c, err := h.clients.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, c, "client created")
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var in services.ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	c, err := h.clients.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, c, "client updated")
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.clients.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, "client deleted")
}
