package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/projection"
)

func (h *handler) practitionerAppointments(w http.ResponseWriter, r *http.Request) {
	views, err := h.projection.PractitionerAppointments(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func (h *handler) practitionerClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.projection.UniqueClients(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if clients == nil {
		clients = []projection.ClientView{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *handler) clientHistory(w http.ResponseWriter, r *http.Request) {
	clientID, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records, err := h.appointments.History(r.Context(), principal(r), clientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]HistoryRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryRecordResponse{
			AppointmentID:    rec.AppointmentID,
			AppointmentDate:  rec.AppointmentDate.UTC().Format(time.RFC3339),
			AppointmentLocal: h.projection.FormatLocal(rec.AppointmentDate),
			Status:           rec.Status,
			History:          rec.Entry,
			Notes:            rec.Notes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) attachHistory(w http.ResponseWriter, r *http.Request) {
	clientID, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var entry appointment.HistoryEntry
	if err := decodeJSON(r, &entry); err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.appointments.AttachHistory(r.Context(), principal(r), clientID, entry)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AppointmentResponse{
		Message:     "History updated successfully",
		Appointment: h.projection.RenderAppointment(*appt),
	})
}

func (h *handler) callerPractitionerID(r *http.Request) (int64, error) {
	p, err := h.identity.PractitionerByAccount(r.Context(), principal(r).AccountID)
	if err != nil {
		return 0, err
	}
	return p.Profile.ID, nil
}

func (h *handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := h.callerPractitionerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doc, err := h.availability.Get(r.Context(), practitionerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if doc == nil {
		doc = availability.Document{}
	}
	writeJSON(w, http.StatusOK, AvailabilityPayload{Days: doc})
}

// putAvailability replaces the whole document.
func (h *handler) putAvailability(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := h.callerPractitionerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req AvailabilityPayload
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Days == nil {
		req.Days = availability.Document{}
	}

	if err := h.availability.Set(r.Context(), practitionerID, req.Days); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
