// Package worker mirrors meal records to the backup spreadsheet, driven
// by queue events with a periodic pending scan as the catch-up path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"caltrack/internal/amqp"
	"caltrack/internal/core"
	"caltrack/internal/sheets"
	"caltrack/internal/storage"
)

// MealSource is the slice of the repository the worker reads from.
type MealSource interface {
	GetMeal(ctx context.Context, id core.RecordID) (core.MealRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncMeal, error)
	MarkSynced(ctx context.Context, id core.RecordID) error
	MarkSyncError(ctx context.Context, id core.RecordID) error
}

type ExportWorker struct {
	source    MealSource
	writer    sheets.MealWriter
	deleter   sheets.MealDeleter
	batchSize int
}

func NewExportWorker(source MealSource, writer sheets.MealWriter, deleter sheets.MealDeleter, batchSize int) *ExportWorker {
	return &ExportWorker{
		source:    source,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleEvent processes one queue event. Returning an error requeues the
// event for another attempt.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.MealEvent) error {
	switch event.Op {
	case amqp.OpSync:
		return w.mirror(ctx, core.RecordID(event.ID), event.Version)
	case amqp.OpDelete:
		return w.removeRow(ctx, core.RecordID(event.ID))
	default:
		return fmt.Errorf("unknown meal event op %q", event.Op)
	}
}

// mirror copies the current state of a record to the spreadsheet. For a
// re-export (version past the first) any stale row goes first, so the id
// stays unique in the sheet.
func (w *ExportWorker) mirror(ctx context.Context, id core.RecordID, version int64) error {
	meal, err := w.source.GetMeal(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the event was consumed; the delete event will
		// clean up the sheet.
		slog.InfoContext(ctx, "Skipping export of deleted meal", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get meal: %w", err)
	}

	if version != 1 && w.deleter != nil {
		if err := w.deleter.DeleteByID(ctx, id); err != nil {
			slog.WarnContext(ctx, "Failed clearing stale sheet row before re-export",
				"id", id, "error", err)
		}
	}

	ref, err := w.writer.Append(ctx, meal)
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.source.MarkSynced(ctx, id); err != nil {
		// The row is already in the sheet, so do not fail the event.
		slog.ErrorContext(ctx, "Failed to mark meal as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Meal exported",
		"id", id,
		"date", meal.Date,
		"food", meal.FoodName,
		"sheet_ref", ref)
	return nil
}

func (w *ExportWorker) removeRow(ctx context.Context, id core.RecordID) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No sheet deleter configured, skipping row removal", "id", id)
		return nil
	}
	if err := w.deleter.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete sheet row: %w", err)
	}
	slog.InfoContext(ctx, "Meal removed from sheet", "id", id)
	return nil
}

// ProcessPending exports records the queue path missed. Failures are
// logged per record; the scan keeps going.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.source.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending meals: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending meal exports", "count", len(pending))
	for _, p := range pending {
		if err := w.mirror(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending meal", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains the pending backlog once at worker start, with a
// larger batch than the periodic scan.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.source.GetPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending meals for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending meal exports on startup")
		return nil
	}

	slog.InfoContext(ctx, "Draining pending meal exports on startup", "count", len(pending))
	synced, failed := 0, 0
	for _, p := range pending {
		if err := w.mirror(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed startup export", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	slog.InfoContext(ctx, "Startup export drain completed",
		"total", len(pending), "synced", synced, "errors", failed)
	return nil
}
