package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/libs/auth"
	"github.com/md-rashed-zaman/billboardrent/libs/httpx"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/calendar"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/period"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/proposals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/rentals"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Handler struct {
	calendar  *calendar.Service
	resolver  *period.Resolver
	engine    *rentals.Engine
	sync      *proposals.Synchronizer
	directory storage.Directory
	logger    *slog.Logger
}

func New(cal *calendar.Service, resolver *period.Resolver, engine *rentals.Engine, sync *proposals.Synchronizer, directory storage.Directory, logger *slog.Logger) *Handler {
	return &Handler{
		calendar:  cal,
		resolver:  resolver,
		engine:    engine,
		sync:      sync,
		directory: directory,
		logger:    logger.With("component", "http"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/rentals", h.Rentals)
	mux.HandleFunc("/api/v1/proposals", h.Proposals)
	mux.HandleFunc("/api/v1/periods/resolve", h.ResolvePeriod)
	mux.HandleFunc("/api/v1/calendar/generate", h.GenerateCalendar)
	mux.HandleFunc("/api/v1/calendar/find", h.FindBiWeek)
	mux.HandleFunc("/api/v1/calendar/alignment", h.Alignment)
	mux.HandleFunc("/api/v1/calendar/sequence", h.Sequence)
	mux.HandleFunc("/api/v1/calendar/active", h.SetActive)
	mux.HandleFunc("/api/v1/billboards", h.Billboards)
	mux.HandleFunc("/api/v1/clients", h.Clients)
}

type periodRequest struct {
	Kind      string   `json:"kind"`
	BiWeekIDs []string `json:"biweek_ids"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
}

// input picks the period variant once. Requests without a kind use the
// legacy shape where bi-week hints win over dates.
func (p periodRequest) input() (period.Input, error) {
	switch model.PeriodKind(strings.TrimSpace(p.Kind)) {
	case model.PeriodBiWeek:
		return period.BiWeekInput{IDs: p.BiWeekIDs}, nil
	case model.PeriodCustom:
		start, end, err := parseRange(p.Start, p.End)
		if err != nil {
			return nil, err
		}
		return period.CustomInput{Start: start, End: end}, nil
	case "":
		var start, end time.Time
		if p.Start != "" || p.End != "" {
			var err error
			if start, end, err = parseRange(p.Start, p.End); err != nil {
				return nil, err
			}
		}
		return period.FromLegacy(start, end, p.BiWeekIDs), nil
	default:
		return nil, apperr.Period(apperr.RuleKindMismatch, "unknown period kind %q", p.Kind)
	}
}

func (h *Handler) resolve(ctx context.Context, tenantID string, p *periodRequest) (model.Period, error) {
	if p == nil {
		return model.Period{}, apperr.Period(apperr.RuleEmpty, "period is required")
	}
	in, err := p.input()
	if err != nil {
		return model.Period{}, err
	}
	return h.resolver.Resolve(ctx, tenantID, in)
}

type periodResponse struct {
	Kind      string   `json:"kind"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Days      int      `json:"days"`
	BiWeekIDs []string `json:"biweek_ids,omitempty"`
}

func toPeriodResponse(p model.Period) periodResponse {
	return periodResponse{
		Kind:      string(p.Kind),
		Start:     p.Start.UTC().Format(timestampLayout),
		End:       p.End.UTC().Format(timestampLayout),
		Days:      p.Days(),
		BiWeekIDs: p.BiWeekIDs,
	}
}

func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Invalid("invalid %s %q (want YYYY-MM-DD or RFC3339)", field, raw)
}

func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := parseTime("start", rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime("end", rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func tenantFrom(r *http.Request) (string, bool) {
	tenant := strings.TrimSpace(r.Header.Get(auth.TenantHeader))
	return tenant, tenant != ""
}

// requireTenant writes 401 and returns false when the tenant header is missing.
func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant, ok := tenantFrom(r)
	if !ok {
		http.Error(w, "missing tenant", http.StatusUnauthorized)
	}
	return tenant, ok
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type conflictResponse struct {
	BillboardID string `json:"billboard_id"`
	RentalID    string `json:"rental_id,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Rule      string            `json:"rule,omitempty"`
	Conflict  *conflictResponse `json:"conflict,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		Kind:      apperr.Kind(err),
		RequestID: httpx.RequestIDFromContext(r.Context()),
	}
	var perr *apperr.PeriodError
	if errors.As(err, &perr) {
		resp.Rule = string(perr.Rule)
	}
	var cerr *apperr.ConflictError
	if errors.As(err, &cerr) {
		resp.Conflict = &conflictResponse{
			BillboardID: cerr.BillboardID,
			RentalID:    cerr.RentalID,
			Start:       cerr.Start.UTC().Format(time.DateOnly),
			End:         cerr.End.UTC().Format(time.DateOnly),
		}
	}
	w.Header().Set(httpx.ErrorKindHeader, resp.Kind)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		resp.Error = "internal error"
	case http.StatusServiceUnavailable:
		resp.Error = "temporarily unavailable, retry later"
	}
	writeJSON(w, status, resp)
}
