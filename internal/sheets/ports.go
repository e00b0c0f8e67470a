// Package sheets defines the outbound ports for mirroring meal records
// to a backup spreadsheet.
package sheets

import (
	"context"

	"caltrack/internal/core"
)

type (
	// MealWriter appends one meal row and returns a reference to it.
	MealWriter interface {
		Append(ctx context.Context, m core.MealRecord) (rowRef string, err error)
	}

	// MealDeleter removes the row carrying the given record id. Removing
	// an id with no row is not an error.
	MealDeleter interface {
		DeleteByID(ctx context.Context, id core.RecordID) error
	}
)
