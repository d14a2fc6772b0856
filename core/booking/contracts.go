package booking

import (
	"context"
	"time"
)

// Catalog reads the salon's bookable services and staff.
type Catalog interface {
	ListServices(ctx context.Context) ([]Service, error)
	ListStylists(ctx context.Context) ([]Stylist, error)
}

// Scheduler manages appointments and slot availability.
type Scheduler interface {
	// Availability returns the free time slots ("HH:MM") for the given date,
	// earliest first. An empty slice means the date is fully booked or closed.
	Availability(ctx context.Context, date time.Time) ([]string, error)

	// Create books an appointment. It returns ErrSlotTaken when the selected
	// slot has no remaining capacity.
	Create(ctx context.Context, spec Spec) (*Appointment, error)

	// FindByContact returns upcoming active appointments for a phone or email.
	FindByContact(ctx context.Context, contact string) ([]Appointment, error)

	// FindByID returns a single appointment or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*Appointment, error)

	// Cancel marks an appointment canceled. Returns ErrNotFound if it is
	// already gone or canceled through another channel.
	Cancel(ctx context.Context, id int64) error

	// SaveFeedback records a post-visit rating for an appointment.
	SaveFeedback(ctx context.Context, appointmentID int64, rating int) error
}
