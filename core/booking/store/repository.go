// Package store implements the booking contracts on Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/glowdesk/bookingbot/core/booking"
	"github.com/glowdesk/bookingbot/core/logger"
	"log/slog"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// appointmentColumns is the select list shared by every appointment read.
// The stylist name is resolved inline so callers get a renderable row
// without a second query.
var appointmentColumns = []string{
	"id", "service_names", "stylist_id",
	"COALESCE((SELECT s.name FROM stylists s WHERE s.id = appointments.stylist_id), '') AS stylist_name",
	"date", "time", "duration_min", "price_cents",
	"customer_name", "contact", "created_at", "canceled_at",
}

// Repository implements booking.Catalog and booking.Scheduler on Postgres.
type Repository struct {
	db    *sqlx.DB
	hours booking.Hours
	now   func() time.Time
}

// NewRepository wires a repository over an open connection pool.
func NewRepository(db *sqlx.DB, hours booking.Hours) *Repository {
	return &Repository{db: db, hours: hours, now: time.Now}
}

// ListServices returns all bookable services ordered by display priority.
func (r *Repository) ListServices(ctx context.Context) ([]booking.Service, error) {
	query, args, err := psql.Select("id", "name", "price_cents", "duration_min").
		From("services").
		OrderBy("sort_order", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ListServices - build query: %v", ErrBuildQuery, err)
	}

	var services []booking.Service
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("%w: ListServices: %v", ErrExecQuery, err)
	}
	return services, nil
}

// ListStylists returns all active stylists.
func (r *Repository) ListStylists(ctx context.Context) ([]booking.Stylist, error) {
	query, args, err := psql.Select("id", "name").
		From("stylists").
		Where(squirrel.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ListStylists - build query: %v", ErrBuildQuery, err)
	}

	var stylists []booking.Stylist
	if err := r.db.SelectContext(ctx, &stylists, query, args...); err != nil {
		return nil, fmt.Errorf("%w: ListStylists: %v", ErrExecQuery, err)
	}
	return stylists, nil
}

// Availability computes the free slots for a date from the salon hours and
// the day's active appointments.
func (r *Repository) Availability(ctx context.Context, date time.Time) ([]string, error) {
	taken, err := r.appointmentsOn(ctx, r.db, date, false)
	if err != nil {
		return nil, err
	}
	capacity, err := r.capacity(ctx)
	if err != nil {
		return nil, err
	}
	return booking.FreeSlots(r.hours, date, r.now(), taken, capacity), nil
}

// Create books an appointment. The day's appointments are locked for the
// duration of the check-then-insert so a concurrent booking of the last
// opening surfaces as ErrSlotTaken instead of an overbooked slot.
func (r *Repository) Create(ctx context.Context, spec booking.Spec) (*booking.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: Create - begin: %v", ErrExecQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := r.appointmentsOn(ctx, tx, spec.Date, true)
	if err != nil {
		return nil, err
	}
	if conflict, err := r.slotConflict(ctx, spec, taken); err != nil {
		return nil, err
	} else if conflict {
		return nil, booking.ErrSlotTaken
	}

	query, args, err := psql.Insert("appointments").
		Columns("service_names", "stylist_id", "date", "time",
			"duration_min", "price_cents", "customer_name", "contact").
		Values(pq.StringArray(spec.ServiceNames), spec.StylistID,
			spec.Date.Format(booking.DateFormat), spec.Time,
			spec.DurationMin, spec.PriceCents, spec.CustomerName, spec.Contact).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert: %v", ErrBuildQuery, err)
	}

	apt := booking.Appointment{
		ServiceNames: spec.ServiceNames,
		StylistID:    spec.StylistID,
		Date:         spec.Date,
		Time:         spec.Time,
		DurationMin:  spec.DurationMin,
		PriceCents:   spec.PriceCents,
		CustomerName: spec.CustomerName,
		Contact:      spec.Contact,
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&apt.ID, &apt.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: Create - insert: %v", ErrExecQuery, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: Create - commit: %v", ErrExecQuery, err)
	}

	logger.DB.Info("appointment created",
		slog.String("event", "appointment.create"),
		slog.Int64("id", apt.ID),
		slog.String("date", spec.Date.Format(booking.DateFormat)),
		slog.String("time", spec.Time),
	)
	return &apt, nil
}

// slotConflict applies the capacity rule: a named stylist may hold one
// appointment per interval, "no preference" bookings count against the
// total stylist headcount.
func (r *Repository) slotConflict(ctx context.Context, spec booking.Spec, taken []booking.Appointment) (bool, error) {
	if spec.StylistID != nil {
		for _, apt := range taken {
			if !apt.Active() || apt.StylistID == nil || *apt.StylistID != *spec.StylistID {
				continue
			}
			if overlaps(spec.Time, spec.DurationMin, apt) {
				return true, nil
			}
		}
		return false, nil
	}

	capacity, err := r.capacity(ctx)
	if err != nil {
		return false, err
	}
	return booking.CountOverlapping(spec.Time, spec.DurationMin, taken) >= capacity, nil
}

func overlaps(slot string, durationMin int, apt booking.Appointment) bool {
	return booking.CountOverlapping(slot, durationMin, []booking.Appointment{apt}) > 0
}

func (r *Repository) capacity(ctx context.Context) (int, error) {
	stylists, err := r.ListStylists(ctx)
	if err != nil {
		return 0, err
	}
	if len(stylists) == 0 {
		return 1, nil
	}
	return len(stylists), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *Repository) appointmentsOn(ctx context.Context, q queryer, date time.Time, lock bool) ([]booking.Appointment, error) {
	builder := psql.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"date": date.Format(booking.DateFormat)}).
		Where("canceled_at IS NULL")
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: appointmentsOn - build query: %v", ErrBuildQuery, err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: appointmentsOn: %v", ErrExecQuery, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FindByContact returns upcoming active appointments for a phone or email,
// soonest first.
func (r *Repository) FindByContact(ctx context.Context, contact string) ([]booking.Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"contact": contact}).
		Where("canceled_at IS NULL").
		Where("date >= CURRENT_DATE").
		OrderBy("date", "time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: FindByContact - build query: %v", ErrBuildQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FindByContact: %v", ErrExecQuery, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FindByID returns a single active appointment or booking.ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*booking.Appointment, error) {
	query, args, err := psql.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"id": id}).
		Where("canceled_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: FindByID - build query: %v", ErrBuildQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FindByID: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	apts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(apts) == 0 {
		return nil, booking.ErrNotFound
	}
	return &apts[0], nil
}

// Cancel marks an appointment canceled. ErrNotFound means it was already
// gone or canceled through another channel.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	query, args, err := psql.Update("appointments").
		Set("canceled_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where("canceled_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Cancel - build query: %v", ErrBuildQuery, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: Cancel: %v", ErrExecQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: Cancel - rows affected: %v", ErrExecQuery, err)
	}
	if affected == 0 {
		return booking.ErrNotFound
	}

	logger.DB.Info("appointment canceled",
		slog.String("event", "appointment.cancel"),
		slog.Int64("id", id),
	)
	return nil
}

// SaveFeedback records a post-visit rating, overwriting a prior rating for
// the same appointment.
func (r *Repository) SaveFeedback(ctx context.Context, appointmentID int64, rating int) error {
	query, args, err := psql.Insert("appointment_feedback").
		Columns("appointment_id", "rating").
		Values(appointmentID, rating).
		Suffix("ON CONFLICT (appointment_id) DO UPDATE SET rating = EXCLUDED.rating, created_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: SaveFeedback - build query: %v", ErrBuildQuery, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: SaveFeedback: %v", ErrExecQuery, err)
	}
	return nil
}

func scanAppointments(rows *sql.Rows) ([]booking.Appointment, error) {
	var out []booking.Appointment
	for rows.Next() {
		var (
			apt      booking.Appointment
			names    pq.StringArray
			date     time.Time
			canceled sql.NullTime
		)
		err := rows.Scan(&apt.ID, &names, &apt.StylistID, &apt.StylistName, &date,
			&apt.Time, &apt.DurationMin, &apt.PriceCents, &apt.CustomerName,
			&apt.Contact, &apt.CreatedAt, &canceled)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("%w: scan appointment: %v", ErrExecQuery, err)
		}
		apt.ServiceNames = []string(names)
		apt.Date = date
		if canceled.Valid {
			t := canceled.Time
			apt.CanceledAt = &t
		}
		out = append(out, apt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate appointments: %v", ErrExecQuery, err)
	}
	return out, nil
}
