// Package projection builds the role-scoped read views over appointments.
//
// Every view carries the stored instant as RFC3339 UTC in appointment_date and
// the same instant rendered in the display zone in appointment_local.
package projection

import (
	"context"
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
)

// Reader is the read side of the appointment repository.
type Reader interface {
	GetClientIDByAccount(ctx context.Context, accountID int64) (int64, error)
	GetPractitionerIDByAccount(ctx context.Context, accountID int64) (int64, error)
	ListDetails(ctx context.Context, f appointment.Filter) ([]appointment.Detail, error)
	ListClientsOf(ctx context.Context, practitionerID int64) ([]appointment.ClientCard, error)
	CountAll(ctx context.Context) (int, error)
}

// Directory is the account side needed by admin views.
type Directory interface {
	CountActive(ctx context.Context) (identity.RoleCounts, error)
	SearchDirectory(ctx context.Context, query string) (*identity.Directory, error)
}

type View struct {
	ID               int64                     `json:"id"`
	PractitionerID   int64                     `json:"doctor_id"`
	PractitionerName string                    `json:"doctor_name,omitempty"`
	Specialization   string                    `json:"specialization,omitempty"`
	ClientID         int64                     `json:"patient_id"`
	ClientName       string                    `json:"patient_name,omitempty"`
	AppointmentDate  string                    `json:"appointment_date"`
	AppointmentLocal string                    `json:"appointment_local"`
	Status           appointment.Status        `json:"status"`
	Notes            string                    `json:"notes,omitempty"`
	History          *appointment.HistoryEntry `json:"history,omitempty"`
}

type ClientView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Age            *int   `json:"age,omitempty"`
	Address        string `json:"address,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
}

type Summary struct {
	TotalPractitioners int `json:"total_doctors"`
	TotalClients       int `json:"total_patients"`
	TotalAppointments  int `json:"total_appointments"`
}

type Service struct {
	reader    Reader
	directory Directory
	loc       *time.Location
}

func NewService(reader Reader, directory Directory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{reader: reader, directory: directory, loc: loc}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// FormatLocal renders t in the display zone.
func (s *Service) FormatLocal(t time.Time) string {
	return t.In(s.loc).Format(time.RFC3339)
}

// Render converts a stored appointment into its view.
func (s *Service) Render(d appointment.Detail) View {
	v := View{
		ID:               d.ID,
		PractitionerID:   d.PractitionerID,
		PractitionerName: d.PractitionerName,
		Specialization:   d.Specialization,
		ClientID:         d.ClientID,
		ClientName:       d.ClientName,
		AppointmentDate:  d.AppointmentDate.UTC().Format(time.RFC3339),
		AppointmentLocal: s.FormatLocal(d.AppointmentDate),
		Status:           d.Status,
	}
	if entry := appointment.ParseNotes(d.Notes); entry != nil {
		v.History = entry
	} else {
		v.Notes = d.Notes
	}
	return v
}

func (s *Service) RenderAppointment(a appointment.Appointment) View {
	return s.Render(appointment.Detail{Appointment: a})
}

func (s *Service) renderAll(details []appointment.Detail) []View {
	out := make([]View, 0, len(details))
	for _, d := range details {
		out = append(out, s.Render(d))
	}
	return out
}

// ForCaller lists the appointments visible to caller: their own as a client
// or practitioner, everything for an admin.
func (s *Service) ForCaller(ctx context.Context, caller identity.Principal) ([]View, error) {
	switch caller.Role {
	case identity.RoleClient:
		return s.ClientAppointments(ctx, caller)
	case identity.RolePractitioner:
		return s.PractitionerAppointments(ctx, caller)
	case identity.RoleAdmin:
		return s.AllAppointments(ctx)
	}
	return nil, apperr.Forbidden("forbidden", "role cannot list appointments")
}

func (s *Service) ClientAppointments(ctx context.Context, caller identity.Principal) ([]View, error) {
	clientID, err := s.reader.GetClientIDByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	details, err := s.reader.ListDetails(ctx, appointment.Filter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return s.renderAll(details), nil
}

func (s *Service) PractitionerAppointments(ctx context.Context, caller identity.Principal) ([]View, error) {
	practitionerID, err := s.reader.GetPractitionerIDByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	details, err := s.reader.ListDetails(ctx, appointment.Filter{PractitionerID: practitionerID})
	if err != nil {
		return nil, err
	}
	return s.renderAll(details), nil
}

// AllAppointments is the unrestricted admin listing, newest first.
func (s *Service) AllAppointments(ctx context.Context) ([]View, error) {
	details, err := s.reader.ListDetails(ctx, appointment.Filter{NewestFirst: true})
	if err != nil {
		return nil, err
	}
	return s.renderAll(details), nil
}

// UniqueClients lists each client the calling practitioner has seen once.
func (s *Service) UniqueClients(ctx context.Context, caller identity.Principal) ([]ClientView, error) {
	practitionerID, err := s.reader.GetPractitionerIDByAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	cards, err := s.reader.ListClientsOf(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(cards))
	out := make([]ClientView, 0, len(cards))
	for _, c := range cards {
		if seen[c.ClientID] {
			continue
		}
		seen[c.ClientID] = true
		out = append(out, ClientView{
			ID:             c.ClientID,
			Name:           c.Name,
			Email:          c.Email,
			Age:            c.Age,
			Address:        c.Address,
			MedicalHistory: c.MedicalHistory,
		})
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	counts, err := s.directory.CountActive(ctx)
	if err != nil {
		return Summary{}, err
	}
	total, err := s.reader.CountAll(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalPractitioners: counts.Practitioners,
		TotalClients:       counts.Clients,
		TotalAppointments:  total,
	}, nil
}

func (s *Service) Search(ctx context.Context, query string) (*identity.Directory, error) {
	return s.directory.SearchDirectory(ctx, query)
}
