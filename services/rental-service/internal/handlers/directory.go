package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

type billboardRequest struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	MaintenanceMode bool   `json:"maintenance_mode"`
}

type billboardResponse struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	OccupiedToday   bool   `json:"occupied_today"`
	MaintenanceMode bool   `json:"maintenance_mode"`
	Bookable        bool   `json:"bookable"`
}

func toBillboardResponse(b model.Billboard) billboardResponse {
	return billboardResponse{
		ID:              b.ID,
		Code:            b.Code,
		OccupiedToday:   b.OccupiedToday,
		MaintenanceMode: b.MaintenanceMode,
		Bookable:        b.Bookable(),
	}
}

// Billboards upserts the operator-owned fields and reads a billboard back.
// occupied_today in a request body is ignored.
func (h *Handler) Billboards(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		b, err := h.directory.GetBillboard(r.Context(), tenant, id)
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.NotFound("billboard %s", id)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBillboardResponse(b))
	case http.MethodPost:
		var req billboardRequest
		if !decode(w, r, &req) {
			return
		}
		req.ID = strings.TrimSpace(req.ID)
		if req.ID == "" {
			http.Error(w, "missing required fields", http.StatusBadRequest)
			return
		}
		b, err := h.directory.PutBillboard(r.Context(), model.Billboard{
			ID:              req.ID,
			TenantID:        tenant,
			Code:            strings.TrimSpace(req.Code),
			MaintenanceMode: req.MaintenanceMode,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBillboardResponse(b))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type clientRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) Clients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if !decode(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	if err := h.directory.PutClient(r.Context(), model.Client{ID: req.ID, TenantID: tenant, Name: req.Name}); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
