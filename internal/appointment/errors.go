package appointment

import "github.com/hackgods/clinic-booking/internal/apperr"

var (
	ErrNotClient            = apperr.Unauthorized("not_a_client", "only clients with a profile can book appointments")
	ErrNotPractitioner      = apperr.Forbidden("not_a_practitioner", "caller has no practitioner profile")
	ErrPractitionerNotFound = apperr.NotFound("practitioner_not_found", "practitioner not found")
	ErrAppointmentNotFound  = apperr.NotFound("appointment_not_found", "appointment not found")
	ErrNoSharedAppointment  = apperr.NotFound("no_appointment_with_client", "no appointment found with this client")

	ErrInvalidTimestamp = apperr.InvalidInput("invalid_appointment_date", "appointment_date must be an ISO-8601 timestamp")
	ErrPastBooking      = apperr.InvalidInput("past_appointment", "cannot book an appointment in the past")
	ErrPastCancel       = apperr.InvalidInput("past_appointment", "cannot cancel an appointment that has already passed")
	ErrInvalidStatus    = apperr.InvalidInput("invalid_status", "status must be one of scheduled, completed, cancelled")

	ErrSlotTaken       = apperr.Conflict("slot_already_taken", "slot already taken")
	ErrSlotBeingBooked = apperr.Conflict("slot_being_booked", "slot is currently being booked, please retry")

	ErrAlreadyCancelled  = apperr.InvalidState("appointment_already_cancelled", "appointment is already cancelled")
	ErrNotScheduled      = apperr.InvalidState("appointment_not_scheduled", "only scheduled appointments can be cancelled")
	ErrInvalidTransition = apperr.InvalidState("invalid_status_transition", "invalid status transition")
)
