package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/jobs"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

func (h *handler) clientProfile(w http.ResponseWriter, r *http.Request) {
	c, err := h.identity.ClientByAccount(r.Context(), principal(r).AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newClientResponse(*c))
}

func (h *handler) updateClientProfile(w http.ResponseWriter, r *http.Request) {
	var req ClientUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.identity.ClientByAccount(r.Context(), principal(r).AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.identity.UpdateClient(r.Context(), c.Profile.ID, req.toUpdate())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newClientResponse(*updated))
}

func writeTask(w http.ResponseWriter, status int, task *redisclient.Task) {
	writeJSON(w, status, TaskResponse{TaskID: task.ID, Status: string(task.Status)})
}

func (h *handler) requestClientExport(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	c, err := h.identity.ClientByAccount(r.Context(), caller.AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	task, err := h.jobs.RequestExport(r.Context(), jobs.ExportClientHistory, c.Profile.ID, caller.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeTask(w, http.StatusAccepted, task)
}

// clientExportStatus only reveals tasks the caller requested.
func (h *handler) clientExportStatus(w http.ResponseWriter, r *http.Request) {
	task, err := h.jobs.Task(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if task.Kind != string(jobs.ExportClientHistory) || task.RequestedBy != principal(r).Email {
		h.fail(w, r, jobs.ErrTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
