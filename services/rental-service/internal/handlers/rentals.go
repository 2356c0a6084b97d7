package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/rentals"
)

type createRentalRequest struct {
	BillboardID string         `json:"billboard_id"`
	ClientID    string         `json:"client_id"`
	Period      *periodRequest `json:"period"`
}

type rentalResponse struct {
	RentalID    string         `json:"rental_id"`
	BillboardID string         `json:"billboard_id"`
	ClientID    string         `json:"client_id"`
	ClientName  string         `json:"client_name"`
	Period      periodResponse `json:"period"`
	SyncCode    string         `json:"sync_code,omitempty"`
	Origin      string         `json:"origin"`
	CreatedAt   string         `json:"created_at"`
}

func toRentalResponse(r model.Rental) rentalResponse {
	return rentalResponse{
		RentalID:    r.ID,
		BillboardID: r.BillboardID,
		ClientID:    r.ClientID,
		ClientName:  r.ClientName,
		Period:      toPeriodResponse(r.Period),
		SyncCode:    r.SyncCode,
		Origin:      string(r.Origin),
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Rentals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRental(w, r)
	case http.MethodDelete:
		h.deleteRental(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createRental(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createRentalRequest
	if !decode(w, r, &req) {
		return
	}
	req.BillboardID = strings.TrimSpace(req.BillboardID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.BillboardID == "" || req.ClientID == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	p, err := h.resolve(ctx, tenant, req.Period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rental, err := h.engine.CreateRental(ctx, tenant, rentals.CreateRequest{
		BillboardID: req.BillboardID,
		ClientID:    req.ClientID,
		Period:      p,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRentalResponse(rental))
}

func (h *Handler) deleteRental(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if err := h.engine.DeleteRental(r.Context(), tenant, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResolvePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req periodRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.resolve(r.Context(), tenant, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodResponse(p))
}
