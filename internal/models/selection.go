package models

import "time"

// Selection is the slot a session has picked but not booked yet.
type Selection struct {
	SessionID  string    `json:"session_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	SelectedAt time.Time `json:"selected_at"`
}

func (s *Selection) Key() SlotKey {
	return SlotKey{Date: s.Date, Time: s.Time}
}

// Matches reports whether the selection points at the given slot.
func (s *Selection) Matches(date, timeLabel string) bool {
	return s != nil && s.Date == date && s.Time == timeLabel
}
