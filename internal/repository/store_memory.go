package repository

import (
	"context"
	"sync"

	"slotbook/internal/models"

	"github.com/google/uuid"
)

// MemoryBookingStore keeps records in process memory in insertion order.
type MemoryBookingStore struct {
	mu      sync.Mutex
	records []models.BookingRecord
}

func NewMemoryBookingStore(seed ...models.BookingRecord) *MemoryBookingStore {
	s := &MemoryBookingStore{}
	for _, rec := range seed {
		s.records = append(s.records, copyRecord(rec))
	}
	return s
}

func (s *MemoryBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.BookingRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func (s *MemoryBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.WithID(id))
	return id, nil
}

func (s *MemoryBookingStore) RemoveByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.String(models.FieldID) != id {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	return nil
}

func copyRecord(rec models.BookingRecord) models.BookingRecord {
	out := make(models.BookingRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
