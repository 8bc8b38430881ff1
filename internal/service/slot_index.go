package service

import (
	"sort"
	"strings"
	"time"

	"slotbook/internal/models"
)

// SlotIndex groups bookings by slot in insertion order. A key is deleted as
// soon as its last booking is removed, so len(group) is always the booked count.
type SlotIndex struct {
	groups map[models.SlotKey][]models.Booking
	size   int
}

func NewSlotIndex() *SlotIndex {
	return &SlotIndex{groups: make(map[models.SlotKey][]models.Booking)}
}

// BuildSlotIndex groups bookings in the given order.
func BuildSlotIndex(bookings []models.Booking) *SlotIndex {
	idx := NewSlotIndex()
	for _, b := range bookings {
		idx.Add(b)
	}
	return idx
}

func (x *SlotIndex) Add(b models.Booking) {
	key := b.Key()
	x.groups[key] = append(x.groups[key], b)
	x.size++
}

func (x *SlotIndex) Count(key models.SlotKey) int {
	return len(x.groups[key])
}

func (x *SlotIndex) Find(key models.SlotKey, id string) (models.Booking, bool) {
	for _, b := range x.groups[key] {
		if b.ID == id {
			return b, true
		}
	}
	return models.Booking{}, false
}

// Remove drops every booking with id from the slot and reports whether any was removed.
func (x *SlotIndex) Remove(key models.SlotKey, id string) bool {
	group, ok := x.groups[key]
	if !ok {
		return false
	}

	kept := make([]models.Booking, 0, len(group))
	for _, b := range group {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	removed := len(group) - len(kept)
	if removed == 0 {
		return false
	}

	x.size -= removed
	if len(kept) == 0 {
		delete(x.groups, key)
	} else {
		x.groups[key] = kept
	}
	return true
}

func (x *SlotIndex) Has(key models.SlotKey) bool {
	_, ok := x.groups[key]
	return ok
}

func (x *SlotIndex) Group(key models.SlotKey) []models.Booking {
	return append([]models.Booking(nil), x.groups[key]...)
}

func (x *SlotIndex) Slots() int {
	return len(x.groups)
}

func (x *SlotIndex) Len() int {
	return x.size
}

// Sorted flattens the index ordered by date, then time label, then insertion.
func (x *SlotIndex) Sorted() []models.Booking {
	keys := make([]models.SlotKey, 0, len(x.groups))
	for key := range x.groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessSlot(keys[i], keys[j])
	})

	out := make([]models.Booking, 0, x.size)
	for _, key := range keys {
		out = append(out, x.groups[key]...)
	}
	return out
}

// lessSlot orders dates chronologically when both parse as calendar dates and
// as strings otherwise. Time labels are compared as plain strings, so 12-hour
// labels such as "01:00 PM" sort before "11:00 AM".
func lessSlot(a, b models.SlotKey) bool {
	if c := compareDates(a.Date, b.Date); c != 0 {
		return c < 0
	}
	return a.Time < b.Time
}

func compareDates(a, b string) int {
	if a == b {
		return 0
	}
	ta, errA := time.Parse(models.DateLayout, a)
	tb, errB := time.Parse(models.DateLayout, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
