package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"caltrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup for an id with no matching row. Update and
// delete deliberately do NOT return it: a missing target is a silent
// no-op at the API level.
var ErrNotFound = errors.New("meal not found")

// SQLiteRepository is the owning store for meal records.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertMeal persists a new record and returns it with the assigned id.
// The caller is responsible for stamping the date beforehand.
func (r *SQLiteRepository) InsertMeal(ctx context.Context, m core.MealRecord) (core.MealRecord, error) {
	row, err := r.queries.CreateMeal(ctx, CreateMealParams{
		Date:     m.Date,
		Slot:     m.Slot,
		FoodName: m.FoodName,
		Quantity: m.Quantity,
		Unit:     m.Unit,
		Calories: int64(m.Calories),
	})
	if err != nil {
		return core.MealRecord{}, fmt.Errorf("create meal: %w", err)
	}

	slog.InfoContext(ctx, "Meal saved",
		"id", row.ID,
		"date", row.Date,
		"slot", row.Slot,
		"food", row.FoodName,
		"calories", row.Calories)

	return toRecord(row), nil
}

// UpdateMeal overwrites the record with the given id. The id itself is
// never touched by the payload. Updating a missing id is a no-op.
func (r *SQLiteRepository) UpdateMeal(ctx context.Context, m core.MealRecord) error {
	affected, err := r.queries.UpdateMeal(ctx, UpdateMealParams{
		ID:       int64(m.ID),
		Date:     m.Date,
		Slot:     m.Slot,
		FoodName: m.FoodName,
		Quantity: m.Quantity,
		Unit:     m.Unit,
		Calories: int64(m.Calories),
	})
	if err != nil {
		return fmt.Errorf("update meal: %w", err)
	}
	if affected == 0 {
		slog.WarnContext(ctx, "Update targeted a missing meal", "id", m.ID)
	}
	return nil
}

// DeleteMeal removes at most one record. Deleting a missing id is a no-op.
func (r *SQLiteRepository) DeleteMeal(ctx context.Context, id core.RecordID) error {
	affected, err := r.queries.DeleteMeal(ctx, int64(id))
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	if affected == 0 {
		slog.WarnContext(ctx, "Delete targeted a missing meal", "id", id)
	}
	return nil
}

// ListMeals returns every record in insertion order.
func (r *SQLiteRepository) ListMeals(ctx context.Context) ([]core.MealRecord, error) {
	rows, err := r.queries.ListMeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}

	records := make([]core.MealRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records, nil
}

// GetMeal fetches a single record by id.
func (r *SQLiteRepository) GetMeal(ctx context.Context, id core.RecordID) (core.MealRecord, error) {
	row, err := r.queries.GetMeal(ctx, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.MealRecord{}, ErrNotFound
	}
	if err != nil {
		return core.MealRecord{}, fmt.Errorf("get meal: %w", err)
	}
	return toRecord(row), nil
}

// PendingSyncMeal carries the minimum the export worker needs to queue a
// row for the backup spreadsheet.
type PendingSyncMeal struct {
	ID      core.RecordID
	Version int64
}

// GetPendingSync lists records not yet mirrored to the backup sheet.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncMeal, error) {
	rows, err := r.queries.GetPendingSyncMeals(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync meals: %w", err)
	}

	pending := make([]PendingSyncMeal, len(rows))
	for i, row := range rows {
		pending[i] = PendingSyncMeal{ID: core.RecordID(row.ID), Version: row.Version}
	}
	return pending, nil
}

// MarkSynced records a successful mirror of the given meal.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id core.RecordID) error {
	if err := r.queries.MarkMealSynced(ctx, int64(id)); err != nil {
		return fmt.Errorf("mark meal synced: %w", err)
	}
	return nil
}

// MarkSyncError flags a meal whose mirror attempt failed so the periodic
// scan stops retrying it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id core.RecordID) error {
	if err := r.queries.MarkMealSyncError(ctx, int64(id)); err != nil {
		return fmt.Errorf("mark meal sync error: %w", err)
	}
	slog.WarnContext(ctx, "Meal marked with sync error", "id", id)
	return nil
}

func toRecord(row Meal) core.MealRecord {
	return core.MealRecord{
		ID:       core.RecordID(row.ID),
		Date:     row.Date,
		Slot:     row.Slot,
		FoodName: row.FoodName,
		Quantity: row.Quantity,
		Unit:     row.Unit,
		Calories: core.Calories(row.Calories),
	}
}
