package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pillbox/internal/eventbus"
	"pillbox/internal/schedule"
	"pillbox/internal/services/dispense"
	logx "pillbox/pkg/logx"
)

type handlers struct {
	store     schedule.Store
	dispenser Dispenser
	events    *EventLog
	log       logx.Logger
}

type createMedicationRequest struct {
	Time      string `json:"scheduled_time"`
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Container string `json:"container"`
}

type updateMedicationRequest struct {
	// Pointers for real PATCH: nil = leave alone.
	Time      *string `json:"scheduled_time"`
	Name      *string `json:"name"`
	Quantity  *string `json:"quantity"`
	Container *string `json:"container"`
}

// legacyUpdateRequest is the by-name edit shape: plain strings where an
// empty field means "keep the current value".
type legacyUpdateRequest struct {
	Time      string `json:"scheduled_time"`
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Container string `json:"container"`
}

type dispenseRequest struct {
	Timing string `json:"timing"`
}

func (h *handlers) listMedications(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) createMedication(w http.ResponseWriter, r *http.Request) {
	var req createMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if _, err := schedule.ParseClock(req.Time); err != nil {
		http.Error(w, "scheduled_time must be HH:MM", http.StatusBadRequest)
		return
	}

	added, err := h.store.Append(r.Context(), schedule.Entry{
		Time:      strings.TrimSpace(req.Time),
		Name:      strings.TrimSpace(req.Name),
		Quantity:  strings.TrimSpace(req.Quantity),
		Container: strings.TrimSpace(req.Container),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *handlers) getMedication(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) updateMedication(w http.ResponseWriter, r *http.Request) {
	var req updateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Time != nil {
		if _, err := schedule.ParseClock(*req.Time); err != nil {
			http.Error(w, "scheduled_time must be HH:MM", http.StatusBadRequest)
			return
		}
	}

	updated, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), schedule.Patch{
		Time:      req.Time,
		Name:      req.Name,
		Quantity:  req.Quantity,
		Container: req.Container,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handlers) deleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateByName edits the first entry with the given name. Blank fields keep
// their current value, so a caller can re-submit a full form unchanged.
func (h *handlers) updateByName(w http.ResponseWriter, r *http.Request) {
	var req legacyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var p schedule.Patch
	if s := strings.TrimSpace(req.Time); s != "" {
		if _, err := schedule.ParseClock(s); err != nil {
			http.Error(w, "scheduled_time must be HH:MM", http.StatusBadRequest)
			return
		}
		p.Time = &s
	}
	if s := strings.TrimSpace(req.Name); s != "" {
		p.Name = &s
	}
	if s := strings.TrimSpace(req.Quantity); s != "" {
		p.Quantity = &s
	}
	if s := strings.TrimSpace(req.Container); s != "" {
		p.Container = &s
	}

	updated, err := h.store.UpdateFirstByName(r.Context(), chi.URLParam(r, "name"), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handlers) deleteByName(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteFirstByName(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) dueNow(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	due := schedule.DueNow(entries, time.Now())
	if due == nil {
		due = []schedule.Entry{}
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *handlers) timings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	timings := schedule.UniqueTimings(entries)
	if timings == nil {
		timings = []string{}
	}
	writeJSON(w, http.StatusOK, timings)
}

func (h *handlers) availableContainers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.AvailableContainers(entries))
}

func (h *handlers) dispense(w http.ResponseWriter, r *http.Request) {
	var req dispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Timing) == "" {
		http.Error(w, "timing is required", http.StatusBadRequest)
		return
	}

	out := h.dispenser.Dispense(r.Context(), dispense.Trigger{Kind: dispense.KindManual, Timing: req.Timing})
	if out.Err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": out.Message})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": out.Message,
		"call_id": out.CallID,
	})
}

func (h *handlers) taken(w http.ResponseWriter, r *http.Request) {
	h.dispenser.ConfirmTaken(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) listEvents(w http.ResponseWriter, _ *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, []eventbus.Event{})
		return
	}
	writeJSON(w, http.StatusOK, h.events.Recent())
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		http.Error(w, "medication not found", http.StatusNotFound)
	case errors.Is(err, schedule.ErrContainerTaken):
		http.Error(w, "container already in use", http.StatusConflict)
	case errors.Is(err, schedule.ErrStoreUnavailable):
		h.log.Error("store unavailable", logx.Any("err", err))
		http.Error(w, "schedule store unavailable", http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed", logx.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
