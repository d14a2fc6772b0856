// Package session holds per-user booking state between chat turns.
// A BookingContext accumulates the user's selections step by step; updates
// are partial merges so a later step never wipes out an earlier choice.
package session

import "time"

// BookingContext is the per-identity state of an in-progress booking flow.
//
// Volatile fields describe the current flow and are reset on confirmation,
// cancellation, or staleness. Durable fields (customer details and the
// last-booked summary) survive resets so a later session can reuse them.
type BookingContext struct {
	// Volatile flow state.
	Services           []string   `json:"services,omitempty"`
	StylistID          *int64     `json:"stylist_id,omitempty"`
	Date               *time.Time `json:"date,omitempty"`
	Time               string     `json:"time,omitempty"`
	CurrentWeekOffset  int        `json:"week_offset,omitempty"`
	AwaitingCustomDate bool       `json:"awaiting_custom_date,omitempty"`
	// RescheduleID points at the appointment a reschedule flow replaces.
	RescheduleID *int64 `json:"reschedule_id,omitempty"`

	// CurrentStepMessageID references the last bot message for in-place edits.
	CurrentStepMessageID string `json:"step_message_id,omitempty"`

	// Durable fields.
	CustomerName      string `json:"customer_name,omitempty"`
	CustomerEmail     string `json:"customer_email,omitempty"`
	LastServiceBooked string `json:"last_service,omitempty"`
	LastStylistBooked string `json:"last_stylist,omitempty"`
	LastBookingDate   string `json:"last_date,omitempty"`

	// UpdatedAt drives the lazy staleness check.
	UpdatedAt time.Time `json:"updated_at"`
}

// InFlow reports whether any booking step has been taken yet.
func (c *BookingContext) InFlow() bool {
	return len(c.Services) > 0 || c.Date != nil || c.Time != "" || c.AwaitingCustomDate
}

// Partial is a field-by-field update to a BookingContext. A nil field leaves
// the current value untouched. Fields that can be explicitly cleared carry a
// Set flag so "unset" is distinguishable from "not mentioned".
type Partial struct {
	Services    []string
	SetServices bool

	StylistID  *int64
	SetStylist bool

	Date    *time.Time
	SetDate bool

	RescheduleID  *int64
	SetReschedule bool

	// String fields: nil = untouched, pointer to "" = cleared.
	Time          *string
	CustomerName  *string
	CustomerEmail *string
	MessageID     *string

	WeekOffset         *int
	AwaitingCustomDate *bool

	LastService *string
	LastStylist *string
	LastDate    *string
}

// Apply merges the partial into the context. Only fields present in the
// partial change; everything else keeps its prior value.
func (c *BookingContext) Apply(p Partial) {
	if p.SetServices {
		c.Services = append([]string(nil), p.Services...)
	}
	if p.SetStylist {
		c.StylistID = p.StylistID
	}
	if p.SetDate {
		c.Date = p.Date
	}
	if p.SetReschedule {
		c.RescheduleID = p.RescheduleID
	}
	if p.Time != nil {
		c.Time = *p.Time
	}
	if p.CustomerName != nil {
		c.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		c.CustomerEmail = *p.CustomerEmail
	}
	if p.MessageID != nil {
		c.CurrentStepMessageID = *p.MessageID
	}
	if p.WeekOffset != nil {
		c.CurrentWeekOffset = *p.WeekOffset
	}
	if p.AwaitingCustomDate != nil {
		c.AwaitingCustomDate = *p.AwaitingCustomDate
	}
	if p.LastService != nil {
		c.LastServiceBooked = *p.LastService
	}
	if p.LastStylist != nil {
		c.LastStylistBooked = *p.LastStylist
	}
	if p.LastDate != nil {
		c.LastBookingDate = *p.LastDate
	}
}

// Field names a resettable context field for Clear preserve-lists.
type Field string

const (
	// FieldMessageID preserves CurrentStepMessageID across a reset so the
	// next response can still edit the previous bot message in place.
	FieldMessageID Field = "message_id"
)

// Reset clears the volatile flow state. Durable fields always survive;
// fields named in keep survive as well.
func (c *BookingContext) Reset(keep ...Field) {
	kept := make(map[Field]bool, len(keep))
	for _, f := range keep {
		kept[f] = true
	}

	c.Services = nil
	c.StylistID = nil
	c.Date = nil
	c.Time = ""
	c.CurrentWeekOffset = 0
	c.AwaitingCustomDate = false
	c.RescheduleID = nil
	if !kept[FieldMessageID] {
		c.CurrentStepMessageID = ""
	}
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (c *BookingContext) Clone() *BookingContext {
	out := *c
	out.Services = append([]string(nil), c.Services...)
	if c.StylistID != nil {
		id := *c.StylistID
		out.StylistID = &id
	}
	if c.Date != nil {
		d := *c.Date
		out.Date = &d
	}
	if c.RescheduleID != nil {
		id := *c.RescheduleID
		out.RescheduleID = &id
	}
	return &out
}

// Ptr is a helper for building Partials from literals.
func Ptr[T any](v T) *T { return &v }
