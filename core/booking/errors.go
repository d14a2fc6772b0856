package booking

import "errors"

var (
	// ErrNotFound indicates the referenced service, stylist, or appointment no longer exists.
	ErrNotFound = errors.New("booking: not found")

	// ErrSlotTaken indicates the selected slot lost its last opening to a concurrent booking.
	ErrSlotTaken = errors.New("booking: slot taken")
)
