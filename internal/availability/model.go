package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

const dateLayout = "2006-01-02"

var ErrInvalidDocument = apperr.InvalidInput("invalid_availability", "invalid availability")

// Slots holds the time ranges of one day. It accepts either a single string
// ("09:00-12:00" or "09:00-12:00, 14:00-17:00") or an array of range strings,
// and serializes back in the form it was given.
type Slots struct {
	Ranges []string
	text   *string
}

func NewSlots(ranges ...string) Slots {
	return Slots{Ranges: ranges}
}

func (s Slots) MarshalJSON() ([]byte, error) {
	if s.text != nil {
		return json.Marshal(*s.text)
	}
	if s.Ranges == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Ranges)
}

func (s *Slots) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Slots{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Slots{Ranges: splitRanges(text), text: &text}
		return nil
	}
	var ranges []string
	if err := json.Unmarshal(data, &ranges); err != nil {
		return fmt.Errorf("slots must be a string or an array of strings: %w", err)
	}
	*s = Slots{Ranges: ranges}
	return nil
}

func splitRanges(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Day is one dated entry of a practitioner's availability document.
type Day struct {
	Date  string `json:"date"`
	Slots Slots  `json:"slots"`
}

// Document is the ordered availability of a practitioner. It is advisory:
// bookings are not checked against it.
type Document []Day

func (d Document) Validate() error {
	seen := make(map[string]bool, len(d))
	for i, day := range d {
		if _, err := time.Parse(dateLayout, day.Date); err != nil {
			return apperr.Withf(ErrInvalidDocument, "day %d: date %q must be YYYY-MM-DD", i, day.Date)
		}
		if seen[day.Date] {
			return apperr.Withf(ErrInvalidDocument, "day %d: date %s listed twice", i, day.Date)
		}
		seen[day.Date] = true
		for _, r := range day.Slots.Ranges {
			if err := validateRange(r); err != nil {
				return apperr.Withf(ErrInvalidDocument, "day %s: %v", day.Date, err)
			}
		}
	}
	return nil
}

func validateRange(r string) error {
	start, end, ok := strings.Cut(strings.TrimSpace(r), "-")
	if !ok {
		return fmt.Errorf("range %q must be HH:MM-HH:MM", r)
	}
	from, err := time.Parse("15:04", strings.TrimSpace(start))
	if err != nil {
		return fmt.Errorf("range %q has invalid start", r)
	}
	to, err := time.Parse("15:04", strings.TrimSpace(end))
	if err != nil {
		return fmt.Errorf("range %q has invalid end", r)
	}
	if !from.Before(to) {
		return fmt.Errorf("range %q ends before it starts", r)
	}
	return nil
}

// Decode parses a stored document. An empty or malformed blob yields an empty document.
func Decode(raw string) (Document, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func Encode(doc Document) (string, error) {
	if doc == nil {
		doc = Document{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
