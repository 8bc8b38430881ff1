package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	FieldID        = "id"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldName      = "name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldCreatedAt = "createdAt"
)

var ErrInvalidRecord = errors.New("invalid booking record")

// BookingRecord is the loosely typed document exchanged with booking stores.
// Values come from JSON, BSON or Firestore decoding, so every getter tolerates
// the shapes those decoders produce.
type BookingRecord map[string]interface{}

// NewRecord converts a booking into a store document. An empty ID is omitted.
func NewRecord(b Booking) BookingRecord {
	rec := BookingRecord{
		FieldDate:  b.Date,
		FieldTime:  b.Time,
		FieldName:  b.Name,
		FieldEmail: b.Email,
		FieldPhone: b.Phone,
	}
	if b.ID != "" {
		rec[FieldID] = b.ID
	}
	if !b.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

// WithID returns a shallow copy of the record carrying id.
func (r BookingRecord) WithID(id string) BookingRecord {
	out := make(BookingRecord, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[FieldID] = id
	return out
}

// WithoutID returns a shallow copy without the id field.
func (r BookingRecord) WithoutID() BookingRecord {
	out := make(BookingRecord, len(r))
	for k, v := range r {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	return out
}

func (r BookingRecord) String(key string) string {
	if r == nil {
		return ""
	}
	val, ok := r[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Time reads a timestamp stored as RFC3339 text, time.Time or unix milliseconds.
func (r BookingRecord) Time(key string) time.Time {
	if r == nil {
		return time.Time{}
	}
	val, ok := r[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	case int64:
		return time.UnixMilli(v).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	default:
		return time.Time{}
	}
}

// ParseRecord validates a store document and converts it to a Booking.
// Records without id, date or time cannot be placed in a slot and are rejected.
func ParseRecord(r BookingRecord) (Booking, error) {
	b := Booking{
		ID:        strings.TrimSpace(r.String(FieldID)),
		Date:      strings.TrimSpace(r.String(FieldDate)),
		Time:      strings.TrimSpace(r.String(FieldTime)),
		Name:      r.String(FieldName),
		Email:     r.String(FieldEmail),
		Phone:     r.String(FieldPhone),
		CreatedAt: r.Time(FieldCreatedAt),
	}

	var missing []string
	if b.ID == "" {
		missing = append(missing, FieldID)
	}
	if b.Date == "" {
		missing = append(missing, FieldDate)
	}
	if b.Time == "" {
		missing = append(missing, FieldTime)
	}
	if len(missing) > 0 {
		return Booking{}, fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	return b, nil
}
