package view

import "caltrack/internal/core"

// Op identifies which mutation a form submit should issue.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// EditSession is the form's mode: idle (submits create a new record) or
// editing a specific record (the next submit updates it). The zero value
// is idle.
type EditSession struct {
	editing core.RecordID
}

// Editing reports the targeted record id, zero when idle.
func (s EditSession) Editing() core.RecordID { return s.editing }

// Idle reports whether the form is in create mode.
func (s EditSession) Idle() bool { return s.editing == 0 }

// StartEdit switches the form into edit mode for the record with the
// given id, returning the record found in the displayed day's bucket so
// the caller can pre-populate the form. Returns false when the id is not
// present in that bucket; the session is left unchanged.
func (s *EditSession) StartEdit(id core.RecordID, bucket core.DayBucket) (core.MealRecord, bool) {
	for _, m := range bucket.Meals {
		if m.ID == id {
			s.editing = id
			return m, true
		}
	}
	return core.MealRecord{}, false
}

// Cancel resets the form to create mode without issuing any mutation.
func (s *EditSession) Cancel() { s.editing = 0 }

// Submit resolves a form submission: required fields must be filled in
// either mode, otherwise no mutation is issued. On success the session
// reverts to idle and the returned record carries the edited id (if any)
// so an update targets the original record.
func (s *EditSession) Submit(form core.MealRecord) (core.MealRecord, Op, error) {
	if err := form.Validate(); err != nil {
		return core.MealRecord{}, "", err
	}
	if s.editing != 0 {
		form.ID = s.editing
		s.editing = 0
		return form, OpUpdate, nil
	}
	form.ID = 0
	return form, OpCreate, nil
}
