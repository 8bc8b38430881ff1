package repository

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/models"
)

type MemorySelectionRepository struct {
	selections sync.Map
	ttl        time.Duration
	now        func() time.Time
}

type selectionEntry struct {
	selection models.Selection
	expiresAt time.Time
}

func NewMemorySelectionRepository(ttl time.Duration) *MemorySelectionRepository {
	return &MemorySelectionRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySelectionRepository) GetSelection(ctx context.Context, sessionID string) (*models.Selection, error) {
	val, ok := r.selections.Load(sessionID)
	if !ok {
		return nil, nil
	}
	entry := val.(selectionEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.selections.CompareAndDelete(sessionID, val)
		return nil, nil
	}
	sel := entry.selection
	return &sel, nil
}

func (r *MemorySelectionRepository) SetSelection(ctx context.Context, selection *models.Selection) error {
	entry := selectionEntry{selection: *selection}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.selections.Store(selection.SessionID, entry)
	return nil
}

func (r *MemorySelectionRepository) ClearSelection(ctx context.Context, sessionID string) error {
	r.selections.Delete(sessionID)
	return nil
}
