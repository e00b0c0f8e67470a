// Package memory is an in-process MealWriter/MealDeleter, used by tests
// and by worker runs without spreadsheet credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"caltrack/internal/core"
	ports "caltrack/internal/sheets"
)

type Adapter struct {
	mu   sync.Mutex
	rows []core.MealRecord
}

var (
	_ ports.MealWriter  = (*Adapter)(nil)
	_ ports.MealDeleter = (*Adapter)(nil)
)

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Append(ctx context.Context, m core.MealRecord) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, m)
	return fmt.Sprintf("memory!A%d", len(a.rows)), nil
}

func (a *Adapter) DeleteByID(ctx context.Context, id core.RecordID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, row := range a.rows {
		if row.ID == id {
			a.rows = append(a.rows[:i], a.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the mirrored rows in order.
func (a *Adapter) Rows() []core.MealRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.MealRecord, len(a.rows))
	copy(out, a.rows)
	return out
}
