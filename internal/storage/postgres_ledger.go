package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/outbox"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
	"github.com/arafat-hossain/barberbook/libs/db"
)

const apptColumns = `id, provider_id, customer_id, service_refs, start_time, duration_minutes,
		status, total_price::text, COALESCE(cancel_reason, ''), cancelled_at, created_at`

// PostgresLedger is the durable appointment ledger. Double-booking is
// prevented by the appointments exclusion constraint, which rejects any two
// non-cancelled rows of one provider whose buffered time ranges overlap; the
// constraint violation (23P01) surfaces as ErrSlotConflict. Every mutation
// writes its domain event to the outbox in the same transaction.
type PostgresLedger struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgresLedger(pool *db.Pool, outboxRepo *outbox.Repository) *PostgresLedger {
	return &PostgresLedger{pool: pool, outbox: outboxRepo}
}

var _ scheduling.Ledger = (*PostgresLedger)(nil)

func (l *PostgresLedger) Insert(ctx context.Context, appt model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		priorID, found, err := l.lockIdempotencyKey(ctx, tx, appt.CustomerID, idempotencyKey)
		if err != nil {
			return model.Appointment{}, false, storeErr(err)
		}
		if found && priorID != "" {
			prior, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, priorID))
			if err != nil {
				return model.Appointment{}, false, mapError(err)
			}
			if err := tx.Commit(ctx); err != nil {
				return model.Appointment{}, false, storeErr(err)
			}
			return prior, true, nil
		}
	}

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(provider_id, customer_id, service_refs, start_time, duration_minutes, status, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
		RETURNING `+apptColumns+`
	`, appt.ProviderID, appt.CustomerID, appt.ServiceRefs, appt.StartTime, appt.DurationMinutes, appt.Status, appt.TotalPrice))
	if err != nil {
		return model.Appointment{}, false, mapError(err)
	}

	if idempotencyKey != "" {
		if err := l.finalizeIdempotency(ctx, tx, appt.CustomerID, idempotencyKey, created.ID); err != nil {
			return model.Appointment{}, false, storeErr(err)
		}
	}
	if err := l.emit(ctx, tx, outbox.TopicAppointmentCreated, created); err != nil {
		return model.Appointment{}, false, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, mapError(err)
	}
	return created, false, nil
}

func (l *PostgresLedger) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(l.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return model.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (l *PostgresLedger) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND start_time + make_interval(mins => duration_minutes) > $2
			AND ($4 = '' OR id <> $4::uuid)
		ORDER BY start_time ASC
	`, providerID, start, end, excludeID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (l *PostgresLedger) List(ctx context.Context, q scheduling.ListQuery) ([]model.Appointment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE ($1 = '' OR customer_id = $1)
			AND ($2 = '' OR provider_id = $2)
		ORDER BY start_time DESC
		LIMIT $3
	`, q.CustomerID, q.ProviderID, q.Limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (l *PostgresLedger) UpdateStatus(ctx context.Context, id string, from []model.Status, to model.Status, reason string) (model.Appointment, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fromText := make([]string, len(from))
	for i, f := range from {
		fromText[i] = string(f)
	}
	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancel_reason = CASE WHEN $2 = 'cancelled' THEN NULLIF($3, '') ELSE cancel_reason END,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+apptColumns+`
	`, id, string(to), reason, fromText))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row does not exist or its status disallows the move.
		var current string
		selErr := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
		if errors.Is(selErr, pgx.ErrNoRows) {
			return model.Appointment{}, fmt.Errorf("%w: appointment %s", scheduling.ErrNotFound, id)
		}
		if selErr != nil {
			return model.Appointment{}, storeErr(selErr)
		}
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", scheduling.ErrInvalidTransition, current, to)
	}
	if err != nil {
		return model.Appointment{}, mapError(err)
	}

	if err := l.emit(ctx, tx, outbox.EventTypeFor(to, false), updated); err != nil {
		return model.Appointment{}, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, storeErr(err)
	}
	return updated, nil
}

func (l *PostgresLedger) Reschedule(ctx context.Context, id string, newStart time.Time, newDurationMinutes int) (model.Appointment, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
			duration_minutes = $3
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+apptColumns+`
	`, id, newStart, newDurationMinutes))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row does not exist or it is terminal.
		var current string
		selErr := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
		if errors.Is(selErr, pgx.ErrNoRows) {
			return model.Appointment{}, fmt.Errorf("%w: appointment %s", scheduling.ErrNotFound, id)
		}
		if selErr != nil {
			return model.Appointment{}, storeErr(selErr)
		}
		return model.Appointment{}, fmt.Errorf("%w: cannot reschedule a %s appointment", scheduling.ErrInvalidTransition, current)
	}
	if err != nil {
		return model.Appointment{}, mapError(err)
	}

	if err := l.emit(ctx, tx, outbox.TopicAppointmentRescheduled, updated); err != nil {
		return model.Appointment{}, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapError(err)
	}
	return updated, nil
}

func (l *PostgresLedger) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	evt, err := outbox.AppointmentEvent(eventType, appt)
	if err != nil {
		return err
	}
	return l.outbox.Insert(ctx, tx, evt)
}

func (l *PostgresLedger) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, customerID, key string) (string, bool, error) {
	appointmentID, err := l.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err == nil {
		return appointmentID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key)
	if err != nil {
		return "", false, err
	}
	appointmentID, err = l.selectIdempotencyForUpdate(ctx, tx, customerID, key)
	if err != nil {
		return "", false, err
	}
	return appointmentID, false, nil
}

func (l *PostgresLedger) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, customerID, key string) (string, error) {
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(&appointmentID)
	return appointmentID, err
}

func (l *PostgresLedger) finalizeIdempotency(ctx context.Context, tx pgx.Tx, customerID, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, customerID, key, appointmentID)
	return err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.CustomerID,
		&appt.ServiceRefs,
		&appt.StartTime,
		&appt.DurationMinutes,
		&appt.Status,
		&appt.TotalPrice,
		&appt.CancelReason,
		&cancelledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, storeErr(rows.Err())
	}
	return appts, nil
}

// IsConflict reports whether err is the exclusion-constraint violation
// Postgres raises when two buffered appointment ranges overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func mapError(err error) error {
	switch {
	case IsConflict(err):
		return fmt.Errorf("%w: %v", scheduling.ErrSlotConflict, err)
	case IsNotFound(err):
		return fmt.Errorf("%w: %v", scheduling.ErrNotFound, err)
	default:
		return storeErr(err)
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", scheduling.ErrStoreUnavailable, err)
}
