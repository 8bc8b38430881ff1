package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/export"
	"slotbook/internal/models"
)

const sessionHeader = "X-Session-ID"

type slotRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type bookingRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type slotView struct {
	models.Availability
	Label string `json:"label"`
}

func viewOf(a models.Availability) slotView {
	return slotView{Availability: a, Label: a.Label()}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"index":  s.manager.Stats(),
	})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"time_slots":             s.manager.Catalog(),
		"max_customers_per_slot": s.manager.Capacity(),
	})
}

func (s *HTTPServer) handleDaySlots(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	slots := s.manager.DaySlots(date)
	views := make([]slotView, 0, len(slots))
	for _, a := range slots {
		views = append(views, viewOf(a))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"date": date, "slots": views})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	timeLabel := strings.TrimSpace(r.URL.Query().Get("time"))
	if timeLabel == "" {
		writeError(w, r, http.StatusBadRequest, "time is required")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"availability": viewOf(s.manager.Availability(date, timeLabel))})
}

func (s *HTTPServer) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	var body slotRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sel, err := s.manager.SelectSlot(r.Context(), sessionID(r), date, body.Time)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"selection":    sel,
		"availability": viewOf(s.manager.Availability(sel.Date, sel.Time)),
	})
}

func (s *HTTPServer) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := s.manager.CurrentSelection(r.Context(), sessionID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"selection": sel})
}

func (s *HTTPServer) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ClearSelection(r.Context(), sessionID(r)); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body bookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.manager.CreateBooking(r.Context(), sessionID(r), date, body.Time, models.Customer{
		Name:  body.Name,
		Email: body.Email,
		Phone: body.Phone,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"booking":      booking,
		"availability": viewOf(s.manager.Availability(booking.Date, booking.Time)),
	})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"bookings": s.manager.ListBookings()})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "booking id is required")
		return
	}
	q := r.URL.Query()
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	timeLabel := strings.TrimSpace(q.Get("time"))
	if timeLabel == "" {
		writeError(w, r, http.StatusBadRequest, "time is required")
		return
	}

	gate := domain.NeverConfirm
	if confirmed, _ := strconv.ParseBool(q.Get("confirm")); confirmed {
		gate = domain.AlwaysConfirm
	}

	if err := s.manager.CancelBooking(r.Context(), id, date, timeLabel, gate); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"cancelled":    id,
		"availability": viewOf(s.manager.Availability(date, timeLabel)),
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="bookings_`+time.Now().Format("20060102_150405")+`.xlsx"`)
	if err := export.WriteBookings(w, s.manager.ListBookings(), s.manager.Capacity()); err != nil {
		s.logger.Error().Err(err).Msg("export bookings")
	}
}

func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.LoadIndex(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"index": s.manager.Stats()})
}

// writeDomainError maps manager errors to HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	message := err.Error()
	if errors.Is(err, domain.ErrCancelDeclined) {
		message = "declined"
	}
	writeError(w, r, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSlotFull), errors.Is(err, domain.ErrCancelDeclined):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoSelection),
		errors.Is(err, domain.ErrSelectionMismatch),
		errors.Is(err, domain.ErrInvalidCustomer),
		errors.Is(err, domain.ErrUnknownSlot),
		errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPersistFailure), errors.Is(err, domain.ErrLoadFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseDate(raw string) (string, error) {
	date := strings.TrimSpace(raw)
	if date == "" {
		return "", errors.New("date is required")
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return "", errors.New("invalid date format; expected YYYY-MM-DD")
	}
	return date, nil
}

func sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
