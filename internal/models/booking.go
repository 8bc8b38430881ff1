package models

import (
	"strings"
	"time"
)

// Booking is a confirmed reservation of one place in a slot.
type Booking struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the slot the booking belongs to.
func (b Booking) Key() SlotKey {
	return SlotKey{Date: b.Date, Time: b.Time}
}

// Customer holds the contact details entered on the booking form.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (c Customer) Trimmed() Customer {
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}
