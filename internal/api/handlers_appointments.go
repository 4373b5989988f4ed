package api

import (
	"net/http"

	"github.com/hackgods/clinic-booking/internal/projection"
)

func (h *handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	views, err := h.projection.ForCaller(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func writeViews(w http.ResponseWriter, views []projection.View) {
	if views == nil {
		views = []projection.View{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.appointments.Book(r.Context(), principal(r), req.toBookRequest())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AppointmentResponse{
		Message:     "Appointment booked successfully",
		Appointment: h.projection.RenderAppointment(*appt),
	})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.appointments.Cancel(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Message:       "Appointment cancelled successfully",
		AppointmentID: appt.ID,
	})
}

func (h *handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.appointments.SetStatus(r.Context(), principal(r), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AppointmentResponse{
		Message:     "Appointment status updated",
		Appointment: h.projection.RenderAppointment(*appt),
	})
}
