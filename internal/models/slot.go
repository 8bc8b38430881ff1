package models

import "fmt"

// SlotKey identifies a slot by its date and catalog time label.
type SlotKey struct {
	Date string
	Time string
}

func (k SlotKey) String() string {
	return k.Date + "_" + k.Time
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotLimited   SlotStatus = "limited"
	SlotFull      SlotStatus = "full"
)

// StatusFor classifies a slot by how many places are taken.
func StatusFor(booked, capacity int) SlotStatus {
	switch {
	case booked >= capacity:
		return SlotFull
	case booked == capacity-1:
		return SlotLimited
	default:
		return SlotAvailable
	}
}

// Availability is the rendered state of a single slot.
type Availability struct {
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	BookedCount int        `json:"booked_count"`
	Remaining   int        `json:"remaining"`
	Capacity    int        `json:"capacity"`
	Status      SlotStatus `json:"status"`
}

// NewAvailability derives remaining places and status from the booked count.
func NewAvailability(key SlotKey, booked, capacity int) Availability {
	remaining := capacity - booked
	if remaining < 0 {
		remaining = 0
	}
	return Availability{
		Date:        key.Date,
		Time:        key.Time,
		BookedCount: booked,
		Remaining:   remaining,
		Capacity:    capacity,
		Status:      StatusFor(booked, capacity),
	}
}

func (a Availability) IsFull() bool {
	return a.Status == SlotFull
}

// Label is the short text shown on a slot button.
func (a Availability) Label() string {
	if a.IsFull() {
		return "FULL"
	}
	if a.Remaining == 1 {
		return "1 spot left"
	}
	return fmt.Sprintf("%d spots left", a.Remaining)
}
