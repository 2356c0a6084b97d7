package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

type biweekResponse struct {
	ID     string `json:"id"`
	Year   int    `json:"year"`
	Seq    int    `json:"seq"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"active"`
}

func toBiWeekResponse(w model.BiWeek) biweekResponse {
	return biweekResponse{
		ID:     w.ID,
		Year:   w.Year,
		Seq:    w.Seq,
		Start:  w.Start.UTC().Format(timestampLayout),
		End:    w.End.UTC().Format(timestampLayout),
		Active: w.Active,
	}
}

func toBiWeekResponses(weeks []model.BiWeek) []biweekResponse {
	out := make([]biweekResponse, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, toBiWeekResponse(w))
	}
	return out
}

type generateRequest struct {
	Year   int    `json:"year"`
	Anchor string `json:"anchor"`
	Mode   string `json:"mode"`
}

type generateResponse struct {
	Year    int              `json:"year"`
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	BiWeeks []biweekResponse `json:"biweeks"`
}

func (h *Handler) GenerateCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	mode, err := storage.ParseSaveMode(strings.TrimSpace(req.Mode))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var anchor *time.Time
	if strings.TrimSpace(req.Anchor) != "" {
		a, err := parseTime("anchor", req.Anchor)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		anchor = &a
	}

	weeks, res, err := h.calendar.GenerateYear(r.Context(), tenant, req.Year, anchor, mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Year:    req.Year,
		Created: res.Created,
		Updated: res.Updated,
		Skipped: res.Skipped,
		BiWeeks: toBiWeekResponses(weeks),
	})
}

func (h *Handler) FindBiWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	at, err := parseTime("date", r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.calendar.FindContaining(r.Context(), tenant, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBiWeekResponse(found))
}

type alignmentResponse struct {
	Aligned        bool             `json:"aligned"`
	Covering       []biweekResponse `json:"covering"`
	SuggestedStart string           `json:"suggested_start,omitempty"`
	SuggestedEnd   string           `json:"suggested_end,omitempty"`
}

func (h *Handler) Alignment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, end, err := parseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	al, err := h.calendar.ValidateAlignment(r.Context(), tenant, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := alignmentResponse{Aligned: al.Aligned, Covering: toBiWeekResponses(al.Covering)}
	if !al.Aligned && len(al.Covering) > 0 {
		resp.SuggestedStart = al.SuggestedStart.Format(time.DateOnly)
		resp.SuggestedEnd = al.SuggestedEnd.Format(time.DateOnly)
	}
	writeJSON(w, http.StatusOK, resp)
}

type sequenceRequest struct {
	BiWeekIDs []string `json:"biweek_ids"`
}

type gapResponse struct {
	After  string `json:"after"`
	Before string `json:"before"`
	Kind   string `json:"kind"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

type sequenceResponse struct {
	Valid      bool          `json:"valid"`
	Ordered    []string      `json:"ordered"`
	Gaps       []gapResponse `json:"gaps,omitempty"`
	Missing    []string      `json:"missing,omitempty"`
	Duplicates []string      `json:"duplicates,omitempty"`
}

func (h *Handler) Sequence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req sequenceRequest
	if !decode(w, r, &req) {
		return
	}
	rep, err := h.calendar.ValidateSequence(r.Context(), tenant, req.BiWeekIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := sequenceResponse{
		Valid:      rep.Valid,
		Ordered:    make([]string, 0, len(rep.Ordered)),
		Missing:    rep.Missing,
		Duplicates: rep.Duplicates,
	}
	for _, wk := range rep.Ordered {
		resp.Ordered = append(resp.Ordered, wk.ID)
	}
	for _, g := range rep.Gaps {
		gr := gapResponse{After: g.After, Before: g.Before, Kind: string(g.Kind)}
		if g.Kind == biweek.GapMissingDays {
			gr.From = g.From.Format(time.DateOnly)
			gr.To = g.To.Format(time.DateOnly)
		}
		resp.Gaps = append(resp.Gaps, gr)
	}
	writeJSON(w, http.StatusOK, resp)
}

type activeRequest struct {
	BiWeekID string `json:"biweek_id"`
	Active   *bool  `json:"active"`
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	updated, err := h.calendar.SetActive(r.Context(), tenant, strings.TrimSpace(req.BiWeekID), *req.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBiWeekResponse(updated))
}
