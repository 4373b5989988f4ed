package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/notify"
)

const csvContentType = "text/csv"

func (r *Runner) csvTime(t time.Time) string {
	return t.In(r.loc).Format("2006-01-02 15:04")
}

// clientHistoryCSV renders Practitioner, Date, Status, Notes rows.
func (r *Runner) clientHistoryCSV(details []appointment.Detail) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Practitioner", "Date", "Status", "Notes"}); err != nil {
		return nil, err
	}
	for _, d := range details {
		if err := w.Write([]string{d.PractitionerName, r.csvTime(d.AppointmentDate), string(d.Status), d.Notes}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (r *Runner) systemCSV(details []appointment.Detail) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Practitioner", "Specialization", "Patient", "Date", "Status", "Notes"}); err != nil {
		return nil, err
	}
	for _, d := range details {
		row := []string{
			strconv.FormatInt(d.ID, 10),
			d.PractitionerName,
			d.Specialization,
			d.ClientName,
			r.csvTime(d.AppointmentDate),
			string(d.Status),
			d.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportClientHistory emails the client a CSV of every appointment they hold.
func (r *Runner) ExportClientHistory(ctx context.Context, clientID int64) error {
	client, err := r.clients.Client(ctx, clientID)
	if err != nil {
		return err
	}
	details, err := r.appts.ListDetails(ctx, appointment.Filter{ClientID: clientID})
	if err != nil {
		return fmt.Errorf("list client appointments: %w", err)
	}
	if len(details) == 0 {
		return ErrNoRecords
	}

	data, err := r.clientHistoryCSV(details)
	if err != nil {
		return fmt.Errorf("render client csv: %w", err)
	}
	return r.send(ctx, JobExport, notify.EmailMessage{
		To:      client.Account.Email,
		ToName:  client.Account.Name,
		Subject: "Your treatment history",
		Body:    "Your treatment history is attached.",
		Attachments: []notify.Attachment{{
			Filename:    fmt.Sprintf("treatments_%d.csv", clientID),
			ContentType: csvContentType,
			Data:        data,
		}},
	})
}

// ExportSystem emails recipient a CSV of every appointment in the system.
func (r *Runner) ExportSystem(ctx context.Context, recipient string) error {
	details, err := r.appts.ListDetails(ctx, appointment.Filter{})
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	data, err := r.systemCSV(details)
	if err != nil {
		return fmt.Errorf("render system csv: %w", err)
	}
	return r.send(ctx, JobExport, notify.EmailMessage{
		To:      recipient,
		Subject: "Appointments export",
		Body:    fmt.Sprintf("%d appointments exported.", len(details)),
		Attachments: []notify.Attachment{{
			Filename:    "appointments.csv",
			ContentType: csvContentType,
			Data:        data,
		}},
	})
}
