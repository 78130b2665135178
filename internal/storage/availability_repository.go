package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/arafat-hossain/barberbook/internal/model"
	"github.com/arafat-hossain/barberbook/internal/scheduling"
	"github.com/arafat-hossain/barberbook/libs/db"
)

// AvailabilityRepository stores providers and their recurring weekly windows.
type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

var _ scheduling.AvailabilityStore = (*AvailabilityRepository)(nil)

func (r *AvailabilityRepository) Provider(ctx context.Context, providerID string) (model.Provider, error) {
	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, accepting_bookings
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.ID, &p.DisplayName, &p.AcceptingBookings)
	if err != nil {
		if IsNotFound(err) {
			return model.Provider{}, fmt.Errorf("%w: provider %s", scheduling.ErrNotFound, providerID)
		}
		return model.Provider{}, storeErr(err)
	}
	return p, nil
}

// UpsertProvider is driven by identity events; a provider row must exist
// before any availability or booking can reference it.
func (r *AvailabilityRepository) UpsertProvider(ctx context.Context, p model.Provider) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, display_name, accepting_bookings)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET display_name = EXCLUDED.display_name,
		              accepting_bookings = EXCLUDED.accepting_bookings,
		              updated_at = now()
	`, p.ID, p.DisplayName, p.AcceptingBookings)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *AvailabilityRepository) Windows(ctx context.Context, providerID string, weekday time.Weekday) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, day_of_week, start_minute, end_minute
		FROM availability_windows
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_minute ASC
	`, providerID, int(weekday))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var windows []model.AvailabilityWindow
	for rows.Next() {
		var win model.AvailabilityWindow
		var day int
		if err := rows.Scan(&win.ProviderID, &day, &win.StartMinute, &win.EndMinute); err != nil {
			return nil, storeErr(err)
		}
		win.Weekday = time.Weekday(day)
		windows = append(windows, win)
	}
	if rows.Err() != nil {
		return nil, storeErr(rows.Err())
	}
	return windows, nil
}

// ReplaceWindows swaps the provider's whole weekly schedule in one
// transaction. The availability_windows exclusion constraint backstops
// same-day overlaps that slipped past validation.
func (r *AvailabilityRepository) ReplaceWindows(ctx context.Context, providerID string, windows []model.AvailabilityWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)`, providerID).Scan(&exists); err != nil {
		return storeErr(err)
	}
	if !exists {
		return fmt.Errorf("%w: provider %s", scheduling.ErrNotFound, providerID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE provider_id = $1`, providerID); err != nil {
		return storeErr(err)
	}
	for _, win := range windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (provider_id, day_of_week, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, providerID, int(win.Weekday), win.StartMinute, win.EndMinute)
		if err != nil {
			if IsConflict(err) {
				return fmt.Errorf("%w: overlapping availability windows", scheduling.ErrInvalidRequest)
			}
			return storeErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}
