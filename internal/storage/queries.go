package storage

import (
	"context"
	"database/sql"
	"time"
)

// Meal is the database row shape for one logged meal.
type Meal struct {
	ID        int64
	Date      string
	Slot      string
	FoodName  string
	Quantity  string
	Unit      string
	Calories  int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	Synced    bool
	SyncError bool
}

// Queries bundles the raw SQL statements behind typed methods.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type CreateMealParams struct {
	Date     string
	Slot     string
	FoodName string
	Quantity string
	Unit     string
	Calories int64
}

const createMeal = `
INSERT INTO meals (date, slot, food_name, quantity, unit, calories)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, date, slot, food_name, quantity, unit, calories, created_at, updated_at, version, synced, sync_error
`

func (q *Queries) CreateMeal(ctx context.Context, arg CreateMealParams) (Meal, error) {
	row := q.db.QueryRowContext(ctx, createMeal,
		arg.Date, arg.Slot, arg.FoodName, arg.Quantity, arg.Unit, arg.Calories)
	return scanMeal(row)
}

type UpdateMealParams struct {
	ID       int64
	Date     string
	Slot     string
	FoodName string
	Quantity string
	Unit     string
	Calories int64
}

const updateMeal = `
UPDATE meals
SET date = ?, slot = ?, food_name = ?, quantity = ?, unit = ?, calories = ?,
    updated_at = CURRENT_TIMESTAMP, version = version + 1, synced = 0, sync_error = 0
WHERE id = ?
`

// UpdateMeal returns the number of affected rows; zero means the target
// record does not exist.
func (q *Queries) UpdateMeal(ctx context.Context, arg UpdateMealParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateMeal,
		arg.Date, arg.Slot, arg.FoodName, arg.Quantity, arg.Unit, arg.Calories, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteMeal = `DELETE FROM meals WHERE id = ?`

func (q *Queries) DeleteMeal(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMeal, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getMeal = `
SELECT id, date, slot, food_name, quantity, unit, calories, created_at, updated_at, version, synced, sync_error
FROM meals WHERE id = ?
`

func (q *Queries) GetMeal(ctx context.Context, id int64) (Meal, error) {
	return scanMeal(q.db.QueryRowContext(ctx, getMeal, id))
}

const listMeals = `
SELECT id, date, slot, food_name, quantity, unit, calories, created_at, updated_at, version, synced, sync_error
FROM meals ORDER BY id
`

func (q *Queries) ListMeals(ctx context.Context) ([]Meal, error) {
	rows, err := q.db.QueryContext(ctx, listMeals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meals []Meal
	for rows.Next() {
		m, err := scanMealRows(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

const getPendingSyncMeals = `
SELECT id, date, slot, food_name, quantity, unit, calories, created_at, updated_at, version, synced, sync_error
FROM meals WHERE synced = 0 AND sync_error = 0 ORDER BY id LIMIT ?
`

func (q *Queries) GetPendingSyncMeals(ctx context.Context, limit int64) ([]Meal, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncMeals, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meals []Meal
	for rows.Next() {
		m, err := scanMealRows(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

const markMealSynced = `UPDATE meals SET synced = 1, sync_error = 0 WHERE id = ?`

func (q *Queries) MarkMealSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markMealSynced, id)
	return err
}

const markMealSyncError = `UPDATE meals SET sync_error = 1 WHERE id = ?`

func (q *Queries) MarkMealSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markMealSyncError, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeal(row *sql.Row) (Meal, error) {
	return scanMealRows(row)
}

func scanMealRows(row rowScanner) (Meal, error) {
	var m Meal
	err := row.Scan(
		&m.ID, &m.Date, &m.Slot, &m.FoodName, &m.Quantity, &m.Unit, &m.Calories,
		&m.CreatedAt, &m.UpdatedAt, &m.Version, &m.Synced, &m.SyncError,
	)
	return m, err
}
