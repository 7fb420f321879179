package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/services"
)

type ClientHandler struct {
	clientService *services.ClientService
}

func CreateClientHandler(clientService *services.ClientService) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
	}
}

func (h *ClientHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	client, err := h.clientService.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

func (h *ClientHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	clients, err := h.clientService.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	client, err := h.clientService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

func (h *ClientHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.clientService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
