package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reservio/internal/audit"
	"reservio/internal/models"
	"reservio/internal/slots"
)

// SearchSlotsRequest is the body for POST /api/v1/slots/search.
type SearchSlotsRequest struct {
	ServiceID               string   `json:"service_id"`
	From                    string   `json:"from"`                      // RFC3339 or YYYY-MM-DD
	To                      string   `json:"to"`                        // RFC3339 or YYYY-MM-DD
	PreferredProfessionalID string   `json:"professional_id,omitempty"` // optional
	TimeBuckets             []string `json:"time_buckets,omitempty"`    // morning/afternoon/evening
}

// SearchSlotsResponse carries the ranked candidates.
type SearchSlotsResponse struct {
	Slots []models.CandidateSlot `json:"slots"`
}

// HoldRequest is the body for POST /api/v1/holds and the release
// endpoints.
type HoldRequest struct {
	SlotID     string `json:"slot_id"`
	ClientID   string `json:"client_id"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// HoldResponse reports the hold expiry.
type HoldResponse struct {
	SlotID    string    `json:"slot_id"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExtendRequest is the body for POST /api/v1/holds/extend.
type ExtendRequest struct {
	SlotID       string `json:"slot_id"`
	ClientID     string `json:"client_id"`
	ExtraSeconds int    `json:"extra_seconds"`
}

// ReleaseAllRequest is the body for POST /api/v1/holds/release-all.
type ReleaseAllRequest struct {
	ClientID string `json:"client_id"`
}

// ConfirmRequest is the body for POST /api/v1/bookings/confirm.
type ConfirmRequest struct {
	SlotID      string `json:"slot_id"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseWhen accepts RFC3339 instants and bare YYYY-MM-DD dates.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q; expected RFC3339 or YYYY-MM-DD", s)
}

// handleSearch returns ranked candidate slots.
// POST /api/v1/slots/search
func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SearchSlotsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	from, err := parseWhen(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseWhen(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked, err := s.engine.SearchSlots(r.Context(), slots.SearchRequest{
		ServiceID:               req.ServiceID,
		From:                    from,
		To:                      to,
		PreferredProfessionalID: req.PreferredProfessionalID,
		TimeBuckets:             req.TimeBuckets,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if ranked == nil {
		ranked = []models.CandidateSlot{}
	}
	writeJSON(w, http.StatusOK, SearchSlotsResponse{Slots: ranked})
}

// handleHold places a TTL hold on a slot.
// POST /api/v1/holds
func (s *HTTPServer) handleHold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req HoldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expires, err := s.engine.HoldSlot(r.Context(), req.SlotID, req.ClientID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, HoldResponse{
		SlotID:    req.SlotID,
		ClientID:  req.ClientID,
		ExpiresAt: expires,
	})
}

// handleExtend pushes a hold's expiry further out.
// POST /api/v1/holds/extend
func (s *HTTPServer) handleExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ExtendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	expires, err := s.engine.ExtendHold(r.Context(), req.SlotID, req.ClientID, time.Duration(req.ExtraSeconds)*time.Second)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HoldResponse{
		SlotID:    req.SlotID,
		ClientID:  req.ClientID,
		ExpiresAt: expires,
	})
}

// handleRelease releases one hold.
// POST /api/v1/holds/release
func (s *HTTPServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req HoldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ReleaseHold(r.Context(), req.SlotID, req.ClientID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": true})
}

// handleReleaseAll releases every hold the client owns.
// POST /api/v1/holds/release-all
func (s *HTTPServer) handleReleaseAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ReleaseAllRequest
	if !decodeBody(w, r, &req) {
		return
	}

	removed, err := s.engine.ReleaseAllForClient(r.Context(), req.ClientID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": removed})
}

// handleAvailability reports whether a slot id is free of live holds.
// GET /api/v1/availability?slot_id=
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	slotID := r.URL.Query().Get("slot_id")
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	available, err := s.engine.IsAvailable(slotID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slot_id":   slotID,
		"available": available,
	})
}

// handleConfirm converts a hold into a persisted booking.
// POST /api/v1/bookings/confirm
func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req ConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.engine.Confirm(r.Context(), req.SlotID, req.ClientID, models.BookingDetails{
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Comment:     req.Comment,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleStats returns a point-in-time hold store summary.
// GET /api/v1/stats
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleAuditExport streams an xlsx report of bookings and recent
// activity.
// GET /api/v1/audit/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	from, err := parseWhen(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseWhen(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now()
	if from.IsZero() {
		from = now.AddDate(0, -1, 0)
	}
	if to.IsZero() {
		to = now.AddDate(0, 1, 0)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "bookings_"+now.Format("2006-01-02")+".xlsx"))

	if err := audit.ExportExcel(r.Context(), w, s.engine.Ledger(), s.engine.Trail(), from, to); err != nil {
		s.log.Error().Err(err).Msg("audit export failed")
		// Headers are already written; nothing more to do.
	}
}
