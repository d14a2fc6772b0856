package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/glowdesk/bookingbot/core/booking"
)

// RemindersDue returns the active appointments on the given date, for the
// day-before reminder campaign.
func (r *Repository) RemindersDue(ctx context.Context, date time.Time) ([]booking.Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"date": date.Format(booking.DateFormat)}).
		Where("canceled_at IS NULL").
		OrderBy("time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: RemindersDue - build query: %v", ErrBuildQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: RemindersDue: %v", ErrExecQuery, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FeedbackDue returns appointments completed on the given date that have no
// recorded rating yet.
func (r *Repository) FeedbackDue(ctx context.Context, date time.Time) ([]booking.Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"date": date.Format(booking.DateFormat)}).
		Where("canceled_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM appointment_feedback f WHERE f.appointment_id = appointments.id)").
		OrderBy("time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: FeedbackDue - build query: %v", ErrBuildQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FeedbackDue: %v", ErrExecQuery, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}
