package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// failoverState tracks whether the primary backend is considered down and
// when it was last probed.
type failoverState struct {
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func (s *failoverState) markDown() {
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}

// shouldTryPrimary reports whether a call should go to the primary. While the
// primary is down it is probed again once per recoveryInterval.
func (s *failoverState) shouldTryPrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	last := time.Unix(0, s.lastCheck.Load())
	if time.Since(last) > recoveryInterval {
		s.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}

type FailoverSelectionRepository struct {
	primary  domain.SelectionRepository
	fallback domain.SelectionRepository
	logger   *zerolog.Logger
	state    failoverState
}

func NewFailoverSelectionRepository(primary, fallback domain.SelectionRepository, logger *zerolog.Logger) *FailoverSelectionRepository {
	logger = orNop(logger)
	return &FailoverSelectionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSelectionRepository) GetSelection(ctx context.Context, sessionID string) (*models.Selection, error) {
	if r.state.shouldTryPrimary() {
		sel, err := r.primary.GetSelection(ctx, sessionID)
		if err == nil {
			r.state.isDown.Store(false)
			return sel, nil
		}
		r.logger.Error().Err(err).Msg("Primary selection repository failed, falling back")
		r.state.markDown()
	}
	return r.fallback.GetSelection(ctx, sessionID)
}

func (r *FailoverSelectionRepository) SetSelection(ctx context.Context, selection *models.Selection) error {
	if r.state.shouldTryPrimary() {
		err := r.primary.SetSelection(ctx, selection)
		if err == nil {
			r.state.isDown.Store(false)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary selection repository failed, falling back")
		r.state.markDown()
	}
	return r.fallback.SetSelection(ctx, selection)
}

func (r *FailoverSelectionRepository) ClearSelection(ctx context.Context, sessionID string) error {
	// Clear both sides so a stale fallback entry cannot resurface after recovery.
	fallbackErr := r.fallback.ClearSelection(ctx, sessionID)
	if r.state.shouldTryPrimary() {
		err := r.primary.ClearSelection(ctx, sessionID)
		if err == nil {
			r.state.isDown.Store(false)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary selection repository failed, falling back")
		r.state.markDown()
	}
	return fallbackErr
}

// FailoverBookingStore writes to primary and switches to fallback when the
// primary errors. Records written during an outage stay in the fallback, so
// reads merge both stores and deletes go to the store that holds the id.
type FailoverBookingStore struct {
	primary  domain.BookingStore
	fallback domain.BookingStore
	logger   *zerolog.Logger
	state    failoverState
}

func NewFailoverBookingStore(primary, fallback domain.BookingStore, logger *zerolog.Logger) *FailoverBookingStore {
	logger = orNop(logger)
	return &FailoverBookingStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// FetchAll returns primary records followed by fallback records whose id the
// primary does not have. While the primary is down only the fallback is read.
func (s *FailoverBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	if !s.state.shouldTryPrimary() {
		return s.fallback.FetchAll(ctx)
	}

	records, err := s.primary.FetchAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Primary booking store failed, falling back")
		s.state.markDown()
		return s.fallback.FetchAll(ctx)
	}
	s.state.isDown.Store(false)

	extra, err := s.fallback.FetchAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Fallback booking store unreadable, serving primary only")
		return records, nil
	}
	return mergeRecords(records, extra), nil
}

func mergeRecords(primary, fallback []models.BookingRecord) []models.BookingRecord {
	seen := make(map[string]struct{}, len(primary))
	for _, rec := range primary {
		if id := rec.String(models.FieldID); id != "" {
			seen[id] = struct{}{}
		}
	}

	out := append([]models.BookingRecord(nil), primary...)
	for _, rec := range fallback {
		if _, dup := seen[rec.String(models.FieldID)]; dup {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *FailoverBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	if s.state.shouldTryPrimary() {
		id, err := s.primary.Insert(ctx, record)
		if err == nil {
			s.state.isDown.Store(false)
			return id, nil
		}
		s.logger.Error().Err(err).Msg("Primary booking store failed, falling back")
		s.state.markDown()
	}
	return s.fallback.Insert(ctx, record)
}

// RemoveByID deletes from the fallback when it holds id and from the primary
// otherwise. A primary error is returned even while the primary is marked down.
func (s *FailoverBookingStore) RemoveByID(ctx context.Context, id string) error {
	held, err := s.fallbackHolds(ctx, id)
	if err != nil {
		return fmt.Errorf("look up booking in fallback: %w", err)
	}
	if held {
		return s.fallback.RemoveByID(ctx, id)
	}

	if err := s.primary.RemoveByID(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("booking_id", id).Msg("Primary booking store failed to remove booking")
		s.state.markDown()
		return err
	}
	s.state.isDown.Store(false)
	return nil
}

func (s *FailoverBookingStore) fallbackHolds(ctx context.Context, id string) (bool, error) {
	records, err := s.fallback.FetchAll(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.String(models.FieldID) == id {
			return true, nil
		}
	}
	return false, nil
}
