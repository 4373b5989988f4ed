package api

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/projection"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	Role        identity.Role `json:"role"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

type RegisterPractitionerRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization"`
	Bio            string `json:"bio"`
}

func (r RegisterPractitionerRequest) toNewAccount() identity.NewAccount {
	return identity.NewAccount{
		Role:           identity.RolePractitioner,
		Name:           r.Username,
		Email:          r.Email,
		Password:       r.Password,
		Specialization: r.Specialization,
		Bio:            r.Bio,
	}
}

type RegisterClientRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Age            *int   `json:"age"`
	Address        string `json:"address"`
	MedicalHistory string `json:"medical_history"`
}

func (r RegisterClientRequest) toNewAccount() identity.NewAccount {
	return identity.NewAccount{
		Role:           identity.RoleClient,
		Name:           r.Username,
		Email:          r.Email,
		Password:       r.Password,
		Age:            r.Age,
		Address:        r.Address,
		MedicalHistory: r.MedicalHistory,
	}
}

type RegisterResponse struct {
	Message        string `json:"message"`
	AccountID      int64  `json:"user_id"`
	PractitionerID int64  `json:"doctor_id,omitempty"`
	ClientID       int64  `json:"patient_id,omitempty"`
}

type PractitionerUpdateRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	Specialization *string `json:"specialization"`
	Bio            *string `json:"bio"`
}

func (r PractitionerUpdateRequest) toUpdate() identity.PractitionerUpdate {
	return identity.PractitionerUpdate{
		Name:           r.Username,
		Email:          r.Email,
		Password:       r.Password,
		Specialization: r.Specialization,
		Bio:            r.Bio,
	}
}

type ClientUpdateRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	Age            *int    `json:"age"`
	Address        *string `json:"address"`
	MedicalHistory *string `json:"medical_history"`
}

func (r ClientUpdateRequest) toUpdate() identity.ClientUpdate {
	return identity.ClientUpdate{
		Name:           r.Username,
		Email:          r.Email,
		Password:       r.Password,
		Age:            r.Age,
		Address:        r.Address,
		MedicalHistory: r.MedicalHistory,
	}
}

type PractitionerResponse struct {
	ID             int64                 `json:"id"`
	AccountID      int64                 `json:"user_id"`
	Username       string                `json:"username"`
	Email          string                `json:"email"`
	Specialization string                `json:"specialization"`
	Bio            string                `json:"bio,omitempty"`
	Availability   availability.Document `json:"availability"`
}

func newPractitionerResponse(p identity.Practitioner, doc availability.Document) PractitionerResponse {
	if doc == nil {
		doc = availability.Document{}
	}
	return PractitionerResponse{
		ID:             p.Profile.ID,
		AccountID:      p.Account.ID,
		Username:       p.Account.Name,
		Email:          p.Account.Email,
		Specialization: p.Profile.Specialization,
		Bio:            p.Profile.Bio,
		Availability:   doc,
	}
}

type ClientResponse struct {
	ID             int64  `json:"id"`
	AccountID      int64  `json:"user_id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Age            *int   `json:"age,omitempty"`
	Address        string `json:"address,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
}

func newClientResponse(c identity.Client) ClientResponse {
	return ClientResponse{
		ID:             c.Profile.ID,
		AccountID:      c.Account.ID,
		Username:       c.Account.Name,
		Email:          c.Account.Email,
		Age:            c.Profile.Age,
		Address:        c.Profile.Address,
		MedicalHistory: c.Profile.MedicalHistory,
	}
}

// BookRequest accepts doctor_id and, for older clients, doctorId.
type BookRequest struct {
	DoctorID        int64  `json:"doctor_id"`
	DoctorIDCamel   int64  `json:"doctorId"`
	AppointmentDate string `json:"appointment_date"`
	DateCamel       string `json:"appointmentDate"`
	Notes           string `json:"notes"`
}

func (r BookRequest) toBookRequest() appointment.BookRequest {
	req := appointment.BookRequest{
		PractitionerID:  r.DoctorID,
		AppointmentDate: r.AppointmentDate,
		Notes:           r.Notes,
	}
	if req.PractitionerID == 0 {
		req.PractitionerID = r.DoctorIDCamel
	}
	if req.AppointmentDate == "" {
		req.AppointmentDate = r.DateCamel
	}
	return req
}

type AppointmentResponse struct {
	Message     string          `json:"message"`
	Appointment projection.View `json:"appointment"`
}

type CancelResponse struct {
	Message       string `json:"message"`
	AppointmentID int64  `json:"appointment_id"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type AvailabilityPayload struct {
	Days availability.Document `json:"days"`
}

type HistoryRecordResponse struct {
	AppointmentID    int64                     `json:"appointment_id"`
	AppointmentDate  string                    `json:"appointment_date"`
	AppointmentLocal string                    `json:"appointment_local"`
	Status           appointment.Status        `json:"status"`
	History          *appointment.HistoryEntry `json:"history,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
}

type AccountResponse struct {
	ID       int64         `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Role     identity.Role `json:"role"`
	IsActive bool          `json:"is_active"`
}

type SearchResponse struct {
	Users   []AccountResponse      `json:"users"`
	Doctors []PractitionerResponse `json:"doctors"`
	Clients []ClientResponse       `json:"patients"`
}

type CreatedResponse struct {
	ID int64 `json:"id"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type JobRunResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}
