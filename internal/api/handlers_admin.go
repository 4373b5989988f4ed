package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/jobs"
)

var errMissingQuery = apperr.InvalidInput("missing_query", "query parameter q is required")

func (h *handler) adminSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.projection.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) adminAppointments(w http.ResponseWriter, r *http.Request) {
	views, err := h.projection.AllAppointments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func (h *handler) adminSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.fail(w, r, errMissingQuery)
		return
	}

	dir, err := h.projection.Search(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := SearchResponse{
		Users:   make([]AccountResponse, 0, len(dir.Accounts)),
		Doctors: make([]PractitionerResponse, 0, len(dir.Practitioners)),
		Clients: make([]ClientResponse, 0, len(dir.Clients)),
	}
	for _, a := range dir.Accounts {
		resp.Users = append(resp.Users, AccountResponse{
			ID:       a.ID,
			Username: a.Name,
			Email:    a.Email,
			Role:     a.Role,
			IsActive: a.IsActive,
		})
	}
	for _, p := range dir.Practitioners {
		resp.Doctors = append(resp.Doctors, newPractitionerResponse(p, nil))
	}
	for _, c := range dir.Clients {
		resp.Clients = append(resp.Clients, newClientResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) adminCreatePractitioner(w http.ResponseWriter, r *http.Request) {
	var req RegisterPractitionerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.createPractitioner(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: p.Profile.ID})
}

func (h *handler) adminUpdatePractitioner(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PractitionerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.identity.UpdatePractitioner(r.Context(), id, req.toUpdate())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.availability.Get(r.Context(), p.Profile.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPractitionerResponse(*p, doc))
}

func (h *handler) adminDeactivatePractitioner(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.identity.DeactivatePractitioner(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "blacklisted"})
}

func (h *handler) adminCreateClient(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.createClient(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: c.Profile.ID})
}

func (h *handler) adminUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ClientUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.identity.UpdateClient(r.Context(), id, req.toUpdate())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newClientResponse(*c))
}

func (h *handler) adminDeactivateClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.identity.DeactivateClient(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "blacklisted"})
}

func (h *handler) requestSystemExport(w http.ResponseWriter, r *http.Request) {
	task, err := h.jobs.RequestExport(r.Context(), jobs.ExportSystem, 0, principal(r).Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeTask(w, http.StatusAccepted, task)
}

func (h *handler) systemExportStatus(w http.ResponseWriter, r *http.Request) {
	task, err := h.jobs.Task(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
