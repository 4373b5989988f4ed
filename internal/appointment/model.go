package appointment

import (
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID              int64
	PractitionerID  int64
	ClientID        int64
	AppointmentDate time.Time // UTC, whole seconds
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Detail is an appointment joined with the names needed by listings, emails and exports.
type Detail struct {
	Appointment
	PractitionerName  string
	PractitionerEmail string
	Specialization    string
	ClientName        string
	ClientEmail       string
}

// ClientCard describes a client seen by a practitioner.
type ClientCard struct {
	ClientID       int64
	Name           string
	Email          string
	Age            *int
	Address        string
	MedicalHistory string
}

// Filter narrows appointment listings. Zero values mean no restriction.
type Filter struct {
	PractitionerID int64
	ClientID       int64
	Status         Status
	From           time.Time // inclusive
	To             time.Time // exclusive
	NewestFirst    bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// HistoryEntry is the structured clinical note a practitioner attaches to a visit.
type HistoryEntry struct {
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
	Prescriptions string `json:"prescriptions"`
}

// HistoryRecord is one visit in a client's history with a practitioner. Entry is
// set when the notes hold a structured entry, Notes otherwise.
type HistoryRecord struct {
	AppointmentID   int64
	AppointmentDate time.Time
	Status          Status
	Entry           *HistoryEntry
	Notes           string
}
