package export

import (
	"fmt"
	"io"
	"time"

	"slotbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	SlotsSheet    = "Slots"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	bookingHeaders = []interface{}{"ID", "Date", "Time", "Name", "Email", "Phone", "Created At"}
	slotHeaders    = []interface{}{"Date", "Time", "Booked", "Remaining", "Status"}
)

// WriteBookings writes an xlsx workbook with the booking list (already in
// display order) and a per-slot occupancy sheet.
func WriteBookings(w io.Writer, bookings []models.Booking, capacity int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BookingsSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	if err := writeBookingSheet(f, bookings); err != nil {
		return err
	}

	if _, err := f.NewSheet(SlotsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeSlotSheet(f, bookings, capacity); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeBookingSheet(f *excelize.File, bookings []models.Booking) error {
	if err := f.SetSheetRow(BookingsSheet, "A1", &bookingHeaders); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}

	for i, b := range bookings {
		created := ""
		if !b.CreatedAt.IsZero() {
			created = b.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{b.ID, b.Date, b.Time, b.Name, b.Email, b.Phone, created}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(BookingsSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing booking row: %w", err)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(BookingsSheet, "B", "C", 12)
	_ = f.SetColWidth(BookingsSheet, "D", "F", 24)
	_ = f.SetColWidth(BookingsSheet, "G", "G", 22)
	return nil
}

func writeSlotSheet(f *excelize.File, bookings []models.Booking, capacity int) error {
	if err := f.SetSheetRow(SlotsSheet, "A1", &slotHeaders); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}

	// bookings arrive grouped by slot, so a slot's rows are contiguous
	var keys []models.SlotKey
	counts := make(map[models.SlotKey]int)
	for _, b := range bookings {
		key := b.Key()
		if _, seen := counts[key]; !seen {
			keys = append(keys, key)
		}
		counts[key]++
	}

	for i, key := range keys {
		a := models.NewAvailability(key, counts[key], capacity)
		row := []interface{}{a.Date, a.Time, a.BookedCount, a.Remaining, string(a.Status)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SlotsSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing slot row: %w", err)
		}
	}
	return nil
}
