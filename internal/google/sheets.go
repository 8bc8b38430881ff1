package google

import (
	"context"
	"fmt"
	"os"
	"time"

	"slotbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const bookingsSheet = "Bookings"

// BookingHeaders is the first row of the bookings sheet.
var BookingHeaders = []interface{}{"ID", "Date", "Time", "Name", "Email", "Phone", "Created At"}

// SheetsWriter mirrors the booking list into a spreadsheet.
type SheetsWriter struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsWriter authenticates with a service account credentials file.
func NewSheetsWriter(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsWriter, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewSheetsWriterWithService(srv, spreadsheetID), nil
}

func NewSheetsWriterWithService(srv *sheets.Service, spreadsheetID string) *SheetsWriter {
	return &SheetsWriter{service: srv, spreadsheetID: spreadsheetID}
}

// TestConnection reads the header cell of the bookings sheet.
func (s *SheetsWriter) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ReplaceBookings clears the sheet and writes the header plus one row per booking.
func (s *SheetsWriter) ReplaceBookings(ctx context.Context, bookings []models.Booking) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, bookingsSheet+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	valueRange := &sheets.ValueRange{Values: BookingRows(bookings)}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, bookingsSheet+"!A1", valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}
	return nil
}

// BookingRows renders the header and booking rows in sheet order.
func BookingRows(bookings []models.Booking) [][]interface{} {
	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, BookingHeaders)
	for _, b := range bookings {
		created := ""
		if !b.CreatedAt.IsZero() {
			created = b.CreatedAt.UTC().Format(time.RFC3339)
		}
		values = append(values, []interface{}{b.ID, b.Date, b.Time, b.Name, b.Email, b.Phone, created})
	}
	return values
}
