package view

import (
	"reflect"
	"testing"

	"caltrack/internal/core"
)

func snapshot(dates ...string) map[string]core.DayBucket {
	m := make(map[string]core.DayBucket, len(dates))
	for _, d := range dates {
		m[d] = core.DayBucket{}
	}
	return m
}

func TestNewCursorEmptySnapshot(t *testing.T) {
	c := NewCursor(nil, "", "2024-01-01", 3)
	if !c.Empty() || c.Index != 0 || c.Current() != "" {
		t.Fatalf("empty snapshot cursor = %+v", c)
	}
	// Navigation on an empty cursor is a no-op.
	c.Next()
	c.Prev()
	if c.Index != 0 {
		t.Fatalf("index moved on empty cursor: %d", c.Index)
	}
}

func TestNewCursorSelectionPriority(t *testing.T) {
	snap := snapshot("2024-01-01", "2024-01-02", "2024-01-03")

	cases := []struct {
		name      string
		preferred string
		today     string
		prevIndex int
		wantDate  string
	}{
		{"preferred wins over today", "2024-01-01", "2024-01-02", 0, "2024-01-01"},
		{"absent preferred falls back to today", "2024-02-15", "2024-01-02", 0, "2024-01-02"},
		{"no preferred, today present", "", "2024-01-03", 0, "2024-01-03"},
		{"today absent keeps prior index", "", "2024-02-15", 1, "2024-01-02"},
		{"out of bounds prior index resets to first", "", "2024-02-15", 7, "2024-01-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCursor(snap, tc.preferred, tc.today, tc.prevIndex)
			if c.Current() != tc.wantDate {
				t.Fatalf("selected %q, want %q", c.Current(), tc.wantDate)
			}
		})
	}
}

func TestCursorSortsDates(t *testing.T) {
	c := NewCursor(snapshot("2024-01-03", "2023-11-01", "2024-01-02"), "", "", 0)
	want := []string{"2023-11-01", "2024-01-02", "2024-01-03"}
	if !reflect.DeepEqual(c.Dates, want) {
		t.Fatalf("dates = %v, want %v", c.Dates, want)
	}
}

func TestCursorWrapAround(t *testing.T) {
	c := NewCursor(snapshot("2024-01-01", "2024-01-02", "2024-01-03"), "2024-01-01", "", 0)

	c.Next()
	c.Next()
	c.Next()
	if c.Index != 0 {
		t.Fatalf("three next from 0 over 3 dates should wrap to 0, got %d", c.Index)
	}
	c.Prev()
	if c.Index != 2 {
		t.Fatalf("prev from 0 should wrap to 2, got %d", c.Index)
	}
}
