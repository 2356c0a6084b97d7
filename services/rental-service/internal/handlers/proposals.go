package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/proposals"
)

type createProposalRequest struct {
	ClientID     string         `json:"client_id"`
	Title        string         `json:"title"`
	BillboardIDs []string       `json:"billboard_ids"`
	Period       *periodRequest `json:"period"`
}

type updateProposalRequest struct {
	Title        *string        `json:"title"`
	BillboardIDs []string       `json:"billboard_ids"`
	Period       *periodRequest `json:"period"`
}

type proposalResponse struct {
	ProposalID   string           `json:"proposal_id"`
	ClientID     string           `json:"client_id"`
	Title        string           `json:"title"`
	BillboardIDs []string         `json:"billboard_ids"`
	Period       periodResponse   `json:"period"`
	SyncCode     string           `json:"sync_code"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
	Rentals      []rentalResponse `json:"rentals,omitempty"`
	Added        []string         `json:"added,omitempty"`
	Removed      []string         `json:"removed,omitempty"`
}

func toProposalResponse(p model.Proposal) proposalResponse {
	return proposalResponse{
		ProposalID:   p.ID,
		ClientID:     p.ClientID,
		Title:        p.Title,
		BillboardIDs: p.BillboardIDs,
		Period:       toPeriodResponse(p.Period),
		SyncCode:     p.SyncCode,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Proposals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProposal(w, r)
	case http.MethodPost:
		h.createProposal(w, r)
	case http.MethodPut:
		h.updateProposal(w, r)
	case http.MethodDelete:
		h.deleteProposal(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func proposalID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	p, own, err := h.sync.GetProposal(r.Context(), tenant, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := toProposalResponse(p)
	for _, rental := range own {
		resp.Rentals = append(resp.Rentals, toRentalResponse(rental))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createProposal(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createProposalRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	p, err := h.resolve(ctx, tenant, req.Period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.sync.CreateProposal(ctx, tenant, proposals.CreateRequest{
		ClientID:     strings.TrimSpace(req.ClientID),
		Title:        req.Title,
		BillboardIDs: req.BillboardIDs,
		Period:       p,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProposalResponse(created))
}

func (h *Handler) updateProposal(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	var req updateProposalRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	upd := proposals.UpdateRequest{Title: req.Title, BillboardIDs: req.BillboardIDs}
	if req.Period != nil {
		p, err := h.resolve(ctx, tenant, req.Period)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		upd.Period = &p
	}
	updated, change, err := h.sync.UpdateProposal(ctx, tenant, id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := toProposalResponse(updated)
	resp.Added = change.Added
	resp.Removed = change.Removed
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteProposal(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := proposalID(w, r)
	if !ok {
		return
	}
	if err := h.sync.DeleteProposal(r.Context(), tenant, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
