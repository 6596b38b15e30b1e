package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jdcarver/shiftlog/internal/auth"
	"github.com/jdcarver/shiftlog/internal/shift"
)

// ShiftStore is the repository surface the handlers depend on.
type ShiftStore interface {
	AddShift(ctx context.Context, userID string, ns *shift.NewShift) (string, error)
	GetShift(ctx context.Context, userID, id string) (*shift.Shift, error)
	GetAllShifts(ctx context.Context, userID string) ([]*shift.Shift, error)
	UpdateShift(ctx context.Context, userID string, sh *shift.Shift) (bool, error)
	DeleteShift(ctx context.Context, userID, id string) (bool, error)
	UndeleteShift(ctx context.Context, userID, id string) (bool, error)
	AddJob(ctx context.Context, userID string, nj *shift.NewJob) (bool, error)
}

const (
	defaultPageSize = 10
	recentWindow    = 6
)

// shiftsHandler groups the shift CRUD handlers. The clock is injectable so
// the recent-shifts cutoff can be pinned in tests.
type shiftsHandler struct {
	store ShiftStore
	now   func() time.Time
}

func newShiftsHandler(store ShiftStore) *shiftsHandler {
	return &shiftsHandler{store: store, now: time.Now}
}

// caller returns the authenticated principal, writing a 401 if the auth
// middleware did not run. The middleware is the real gate; this guard only
// protects against wiring mistakes.
func caller(w http.ResponseWriter, r *http.Request) *auth.Principal {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
	}
	return p
}

// requiredQueryParam returns the named query parameter, writing a 400 when
// it is absent or empty.
func requiredQueryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", name+" query parameter is required")
		return "", false
	}
	return v, true
}

// LogShift handles POST /api/LogShift.
func (h *shiftsHandler) LogShift(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	var ns shift.NewShift
	if err := readJSON(r, &ns); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if errs := shift.ValidateNewShift(&ns); len(errs) > 0 {
		slog.Info("invalid request received", "endpoint", "LogShift")
		writeValidationError(w, errs)
		return
	}

	if _, err := h.store.AddShift(r.Context(), p.UserID, &ns); err != nil {
		slog.Error("storing shift failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to store shift")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UpdateShift handles POST /api/UpdateShift. The stored document keeps its
// owner, job list and deleted flag; only the editable fields come from the
// request.
func (h *shiftsHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	var us shift.UpdatedShift
	if err := readJSON(r, &us); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if errs := shift.ValidateUpdatedShift(&us); len(errs) > 0 {
		slog.Info("invalid request received", "endpoint", "UpdateShift")
		writeValidationError(w, errs)
		return
	}

	previous, err := h.store.GetShift(r.Context(), p.UserID, us.ID)
	if err != nil {
		slog.Error("loading shift failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load shift")
		return
	}
	if previous == nil {
		writeError(w, http.StatusNotFound, "not_found", "shift not found")
		return
	}

	previous.CrewMate = us.CrewMate
	previous.Date = us.Date
	previous.Duration = us.Duration
	previous.Event = us.Event
	previous.Location = us.Location
	previous.Role = us.Role

	ok, err := h.store.UpdateShift(r.Context(), p.UserID, previous)
	if err != nil {
		slog.Error("updating shift failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update shift")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "shift not found")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetShift handles GET /api/GetShift?id=...
func (h *shiftsHandler) GetShift(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	id, ok := requiredQueryParam(w, r, "id")
	if !ok {
		return
	}

	sh, err := h.store.GetShift(r.Context(), p.UserID, id)
	if err != nil {
		slog.Error("loading shift failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load shift")
		return
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "not_found", "shift not found")
		return
	}

	writeJSON(w, http.StatusOK, sh.Editable())
}

// DeleteShift handles GET/POST /api/DeleteShift?id=...
func (h *shiftsHandler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

// UndeleteShift handles GET/POST /api/UndeleteShift?id=...
func (h *shiftsHandler) UndeleteShift(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *shiftsHandler) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	p := caller(w, r)
	if p == nil {
		return
	}

	id, ok := requiredQueryParam(w, r, "id")
	if !ok {
		return
	}

	var (
		changed bool
		err     error
	)
	if deleted {
		changed, err = h.store.DeleteShift(r.Context(), p.UserID, id)
	} else {
		changed, err = h.store.UndeleteShift(r.Context(), p.UserID, id)
	}
	if err != nil {
		slog.Error("toggling shift deletion failed", "error", err, "deleted", deleted)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update shift")
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "not_found", "shift not found")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetAllShifts handles GET /api/GetAllShifts?count=&page=. The X-Total-Count
// header always reports the user's full (un-paginated) shift count.
func (h *shiftsHandler) GetAllShifts(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	// Unparseable values fall back to the defaults rather than erroring;
	// clients rely on this.
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		count = defaultPageSize
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}

	shifts, err := h.store.GetAllShifts(r.Context(), p.UserID)
	if err != nil {
		slog.Error("listing shifts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list shifts")
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(shifts)))

	sortByDateDescending(shifts)
	writeJSON(w, http.StatusOK, summarize(paginate(shifts, page, count)))
}

// RecentShifts handles GET /api/RecentShifts: the six most recent shifts
// not dated in the future.
func (h *shiftsHandler) RecentShifts(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	shifts, err := h.store.GetAllShifts(r.Context(), p.UserID)
	if err != nil {
		slog.Error("listing shifts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list shifts")
		return
	}

	// Anything dated today still counts; the cutoff is the end of the
	// current UTC day.
	now := h.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	recent := shifts[:0:0]
	for _, sh := range shifts {
		if sh.Date.Before(cutoff) {
			recent = append(recent, sh)
		}
	}
	sortByDateDescending(recent)
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}

	writeJSON(w, http.StatusOK, summarize(recent))
}

func sortByDateDescending(shifts []*shift.Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		return shifts[i].Date.After(shifts[j].Date)
	})
}

// paginate returns the page-th window of count shifts. A non-positive count
// or an out-of-range page yields an empty window.
func paginate(shifts []*shift.Shift, page, count int) []*shift.Shift {
	if count <= 0 {
		return nil
	}
	start := page * count
	if start < 0 {
		start = 0
	}
	if start >= len(shifts) {
		return nil
	}
	end := start + count
	if end > len(shifts) {
		end = len(shifts)
	}
	return shifts[start:end]
}

func summarize(shifts []*shift.Shift) []shift.ShiftSummary {
	out := make([]shift.ShiftSummary, 0, len(shifts))
	for _, sh := range shifts {
		out = append(out, sh.Summary())
	}
	return out
}
