package api

import (
	"log/slog"
	"net/http"

	"github.com/jdcarver/shiftlog/internal/shift"
)

// jobsHandler groups the job handlers. Jobs live inside their parent shift
// document, so everything here goes through the shift store.
type jobsHandler struct {
	store ShiftStore
}

func newJobsHandler(store ShiftStore) *jobsHandler {
	return &jobsHandler{store: store}
}

// LogJob handles POST /api/LogJob. The job is appended to the shift named
// by the payload's shift field; a missing or deleted shift is a client
// error, not a 404, because the id came from the request body.
func (h *jobsHandler) LogJob(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	var nj shift.NewJob
	if err := readJSON(r, &nj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if errs := shift.ValidateNewJob(&nj); len(errs) > 0 {
		slog.Info("invalid request received", "endpoint", "LogJob")
		writeValidationError(w, errs)
		return
	}

	ok, err := h.store.AddJob(r.Context(), p.UserID, &nj)
	if err != nil {
		slog.Error("storing job failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to store job")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_shift", "shift does not exist")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetJobs handles GET /api/GetJobs?shiftId=...
func (h *jobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	p := caller(w, r)
	if p == nil {
		return
	}

	shiftID, ok := requiredQueryParam(w, r, "shiftId")
	if !ok {
		return
	}

	sh, err := h.store.GetShift(r.Context(), p.UserID, shiftID)
	if err != nil {
		slog.Error("loading shift failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load shift")
		return
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "not_found", "shift not found")
		return
	}

	summaries := make([]shift.JobSummary, 0, len(sh.Jobs))
	for _, j := range sh.Jobs {
		summaries = append(summaries, j.Summary())
	}

	writeJSON(w, http.StatusOK, summaries)
}
