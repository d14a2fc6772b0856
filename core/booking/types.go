// Package booking defines the salon domain model and the contracts the
// conversation flow uses to read the catalog and manage appointments.
package booking

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates in action codes and storage.
const DateFormat = "2006-01-02"

// TimeFormat is the wire format for time-of-day slots.
const TimeFormat = "15:04"

// Service is a bookable salon service.
type Service struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	PriceCents  int64  `db:"price_cents"`
	DurationMin int    `db:"duration_min"`
}

// PriceLabel renders the service price for chat messages, e.g. "$35".
func (s Service) PriceLabel() string {
	return FormatPrice(s.PriceCents)
}

// FormatPrice renders a cent amount as a dollar label, dropping trailing zeros.
func FormatPrice(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// Stylist is a staff member appointments can be booked with.
type Stylist struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Appointment is a confirmed booking.
type Appointment struct {
	ID           int64      `db:"id"`
	ServiceNames []string   `db:"-"`
	StylistID    *int64     `db:"stylist_id"`
	StylistName  string     `db:"-"`
	Date         time.Time  `db:"date"`
	Time         string     `db:"time"`
	DurationMin  int        `db:"duration_min"`
	PriceCents   int64      `db:"price_cents"`
	CustomerName string     `db:"customer_name"`
	Contact      string     `db:"contact"`
	CreatedAt    time.Time  `db:"created_at"`
	CanceledAt   *time.Time `db:"canceled_at"`
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.CanceledAt == nil
}

// Spec carries everything needed to create an appointment.
type Spec struct {
	ServiceNames []string
	StylistID    *int64
	Date         time.Time
	Time         string
	DurationMin  int
	PriceCents   int64
	CustomerName string
	Contact      string
}

// Hours bounds the bookable day.
type Hours struct {
	OpenHour    int
	CloseHour   int
	SlotMinutes int
}
