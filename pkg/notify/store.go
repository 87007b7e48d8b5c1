package notify

import (
	"context"
	"fmt"

	"github.com/rubiojr/huddle/pkg/storage"
)

// Recorder persists notifications. *storage.Store implements it.
type Recorder interface {
	InsertNotifications(ctx context.Context, notes []storage.Notification) error
}

// StoreSink writes notices as notification records.
type StoreSink struct {
	rec Recorder
}

func NewStoreSink(rec Recorder) *StoreSink {
	return &StoreSink{rec: rec}
}

func (s *StoreSink) CreateMany(ctx context.Context, notices []Notice) error {
	if len(notices) == 0 {
		return nil
	}
	notes := make([]storage.Notification, 0, len(notices))
	for _, n := range notices {
		notes = append(notes, storage.Notification{
			UserID:   n.UserID,
			Title:    n.Title,
			Body:     n.Body,
			Category: n.Category,
		})
	}
	if err := s.rec.InsertNotifications(ctx, notes); err != nil {
		return fmt.Errorf("storing %d notifications: %w", len(notes), err)
	}
	return nil
}
