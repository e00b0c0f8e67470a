package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caltrack/internal/amqp"
	"caltrack/internal/core"
	"caltrack/internal/storage"
)

// Store is the slice of the repository the service needs.
type Store interface {
	InsertMeal(ctx context.Context, m core.MealRecord) (core.MealRecord, error)
	UpdateMeal(ctx context.Context, m core.MealRecord) error
	DeleteMeal(ctx context.Context, id core.RecordID) error
	ListMeals(ctx context.Context) ([]core.MealRecord, error)
	GetMeal(ctx context.Context, id core.RecordID) (core.MealRecord, error)
	Close() error
}

// Publisher emits meal export events. May be nil when export is disabled.
type Publisher interface {
	PublishMealEvent(ctx context.Context, event *amqp.MealEvent) error
	Close() error
}

// MealService runs the mutation handlers' shared flow: exactly one
// storage operation, a best-effort export publish, then a fresh
// aggregation over the entire record set.
type MealService struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewMealService(store Store, publisher Publisher) *MealService {
	return &MealService{store: store, publisher: publisher, now: time.Now}
}

// WithClock overrides the server clock, for tests.
func (s *MealService) WithClock(now func() time.Time) *MealService {
	s.now = now
	return s
}

// Snapshot aggregates the full current record set. It always re-reads
// storage; there is no snapshot cache on the server side.
func (s *MealService) Snapshot(ctx context.Context) (map[string]core.DayBucket, error) {
	records, err := s.store.ListMeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return core.GroupByDate(records), nil
}

// Create persists a new record, stamping today's date when the client did
// not supply one, and returns the fresh snapshot. The server clock is
// authoritative for the stamp.
func (s *MealService) Create(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error) {
	m.ID = 0
	if m.Date == "" || !core.ValidDate(m.Date) {
		m.Date = core.Today(s.now())
	}
	if err := m.Validate(); err != nil {
		// The browser client blocks blank fields before submitting, so a
		// hole here is a degraded client; persist what was sent.
		slog.WarnContext(ctx, "Meal saved with missing fields", "reason", err)
	}

	saved, err := s.store.InsertMeal(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("insert meal: %w", err)
	}
	s.publish(ctx, amqp.NewSyncEvent(int64(saved.ID), 1))

	return s.Snapshot(ctx)
}

// Update overwrites the record with the payload's id. A missing target is
// a silent no-op and the unchanged snapshot is returned.
func (s *MealService) Update(ctx context.Context, m core.MealRecord) (map[string]core.DayBucket, error) {
	if m.ID == 0 {
		return nil, errors.New("update requires a record id")
	}
	if m.Date == "" || !core.ValidDate(m.Date) {
		// Keep the stored date rather than inventing one.
		if existing, err := s.store.GetMeal(ctx, m.ID); err == nil {
			m.Date = existing.Date
		} else {
			m.Date = core.Today(s.now())
		}
	}

	if err := s.store.UpdateMeal(ctx, m); err != nil {
		return nil, fmt.Errorf("update meal: %w", err)
	}
	s.publish(ctx, amqp.NewSyncEvent(int64(m.ID), 0))

	return s.Snapshot(ctx)
}

// Delete removes at most one record; a missing target is a no-op.
func (s *MealService) Delete(ctx context.Context, id core.RecordID) (map[string]core.DayBucket, error) {
	if id == 0 {
		return nil, errors.New("delete requires a record id")
	}
	if err := s.store.DeleteMeal(ctx, id); err != nil {
		return nil, fmt.Errorf("delete meal: %w", err)
	}
	s.publish(ctx, amqp.NewDeleteEvent(int64(id)))

	return s.Snapshot(ctx)
}

// publish is best effort: the record is already safe in storage, so a
// queue failure is logged and the request still succeeds.
func (s *MealService) publish(ctx context.Context, event *amqp.MealEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMealEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish meal export event",
			"op", event.Op, "id", event.ID, "error", err)
	}
}

// Close releases storage and queue resources.
func (s *MealService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close meal service: %v", errs)
	}
	return nil
}

// compile-time check that the SQLite repository satisfies Store.
var _ Store = (*storage.SQLiteRepository)(nil)
