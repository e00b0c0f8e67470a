// Package view holds the client-side presentation state as plain Go
// values: the sorted date cursor and the create/edit form session. The
// browser runs the same logic in web/static/js/app.js; keeping a Go copy
// lets the server render an initial day view and makes the navigation
// rules testable without a DOM.
package view

import "caltrack/internal/core"

// Cursor is a stable position over the known meal dates: the ascending
// list of snapshot keys plus the index of the day being displayed.
type Cursor struct {
	Dates []string
	Index int
}

// NewCursor derives a cursor from a fresh grouped snapshot. Selection
// priority for the displayed day: the preferred date when it exists in the
// snapshot, else today, else the previous index when still in bounds, else
// the first date. An empty snapshot yields an empty cursor at index 0.
func NewCursor(grouped map[string]core.DayBucket, preferred, today string, prevIndex int) Cursor {
	dates := core.SortedDates(grouped)
	c := Cursor{Dates: dates}
	if len(dates) == 0 {
		return c
	}
	if i := indexOf(dates, preferred); preferred != "" && i >= 0 {
		c.Index = i
		return c
	}
	if i := indexOf(dates, today); i >= 0 {
		c.Index = i
		return c
	}
	if prevIndex >= 0 && prevIndex < len(dates) {
		c.Index = prevIndex
		return c
	}
	c.Index = 0
	return c
}

// Empty reports whether there are no dates to navigate.
func (c Cursor) Empty() bool { return len(c.Dates) == 0 }

// Current returns the selected date, or "" for an empty cursor.
func (c Cursor) Current() string {
	if c.Empty() {
		return ""
	}
	return c.Dates[c.Index]
}

// Next advances to the following day, wrapping past the newest date back
// to the oldest. No-op when empty. Navigation never refetches; it only
// moves the index over the cached snapshot.
func (c *Cursor) Next() {
	if c.Empty() {
		return
	}
	c.Index = (c.Index + 1) % len(c.Dates)
}

// Prev moves to the preceding day, wrapping from the oldest date to the
// newest. No-op when empty.
func (c *Cursor) Prev() {
	if c.Empty() {
		return
	}
	c.Index = (c.Index - 1 + len(c.Dates)) % len(c.Dates)
}

func indexOf(dates []string, d string) int {
	for i, v := range dates {
		if v == d {
			return i
		}
	}
	return -1
}
