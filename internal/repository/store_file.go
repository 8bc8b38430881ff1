package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"slotbook/internal/models"

	"github.com/google/uuid"
)

// FileBookingStore keeps all records as a JSON array in a single file. Every
// write rewrites the file through a temp file and rename.
type FileBookingStore struct {
	path string
	mu   sync.Mutex
}

func NewFileBookingStore(path string) (*FileBookingStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &FileBookingStore{path: path}, nil
}

func (s *FileBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	records = append(records, record.WithID(id))
	if err := s.write(records); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileBookingStore) RemoveByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	kept := make([]models.BookingRecord, 0, len(records))
	for _, rec := range records {
		if rec.String(models.FieldID) != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.write(kept)
}

func (s *FileBookingStore) read() ([]models.BookingRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bookings file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []models.BookingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode bookings file: %w", err)
	}
	return records, nil
}

func (s *FileBookingStore) write(records []models.BookingRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bookings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bookings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace bookings file: %w", err)
	}
	return nil
}
