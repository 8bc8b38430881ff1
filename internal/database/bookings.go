package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"

	"github.com/google/uuid"
)

// FetchAll returns every booking record in insertion order.
func (db *DB) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, date, time, name, email, phone, created_at FROM bookings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var records []models.BookingRecord
	for rows.Next() {
		var id, date, slot, name, email, phone, createdAt string
		if err := rows.Scan(&id, &date, &slot, &name, &email, &phone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		rec := models.BookingRecord{
			models.FieldID:    id,
			models.FieldDate:  date,
			models.FieldTime:  slot,
			models.FieldName:  name,
			models.FieldEmail: email,
			models.FieldPhone: phone,
		}
		if createdAt != "" {
			rec[models.FieldCreatedAt] = createdAt
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return records, nil
}

// Insert stores the record under a new id and returns it.
func (db *DB) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	id := uuid.New().String()

	createdAt := record.String(models.FieldCreatedAt)
	if t := record.Time(models.FieldCreatedAt); !t.IsZero() {
		createdAt = t.UTC().Format(time.RFC3339Nano)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO bookings (id, date, time, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		record.String(models.FieldDate),
		record.String(models.FieldTime),
		record.String(models.FieldName),
		record.String(models.FieldEmail),
		record.String(models.FieldPhone),
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return id, nil
}

// RemoveByID deletes the booking. An unknown id is not an error.
func (db *DB) RemoveByID(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

// CountBySlot returns the number of stored bookings for one slot.
func (db *DB) CountBySlot(ctx context.Context, key models.SlotKey) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE date = ? AND time = ?`, key.Date, key.Time).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get booked count: %w", err)
	}
	return count, nil
}
