package availability

import (
	"context"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

type Service struct {
	store  Store
	logger *logging.Logger
}

func NewService(store Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// Set replaces the whole availability document of a practitioner.
func (s *Service) Set(ctx context.Context, practitionerID int64, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	raw, err := Encode(doc)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.store.Save(ctx, practitionerID, raw); err != nil {
		return err
	}
	s.logger.Info("availability saved", "practitioner_id", practitionerID, "days", len(doc))
	return nil
}

// Get returns the stored document. A missing or unreadable blob is an empty document.
func (s *Service) Get(ctx context.Context, practitionerID int64) (Document, error) {
	raw, err := s.store.Load(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	return s.decode(practitionerID, raw), nil
}

// GetMany returns documents keyed by practitioner id for listing views.
func (s *Service) GetMany(ctx context.Context, practitionerIDs []int64) (map[int64]Document, error) {
	raws, err := s.store.LoadMany(ctx, practitionerIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Document, len(practitionerIDs))
	for _, id := range practitionerIDs {
		out[id] = s.decode(id, raws[id])
	}
	return out, nil
}

func (s *Service) decode(practitionerID int64, raw string) Document {
	doc, err := Decode(raw)
	if err != nil {
		s.logger.Warn("ignoring unreadable availability", "practitioner_id", practitionerID, "error", err)
		return Document{}
	}
	return doc
}
