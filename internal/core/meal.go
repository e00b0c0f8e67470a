package core

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used everywhere a date crosses a
// boundary: storage, the JSON API, and the grouped snapshot keys.
// Lexicographic order of these strings equals chronological order.
const DateLayout = "2006-01-02"

var (
	ErrEmptySlot     = errors.New("empty meal slot")
	ErrEmptyFood     = errors.New("empty food name")
	ErrEmptyQuantity = errors.New("empty quantity")
	ErrEmptyUnit     = errors.New("empty unit")
	ErrInvalidDate   = errors.New("invalid date")
)

type (
	// RecordID is the storage-assigned identifier of a meal record. It is
	// exposed on the wire as an opaque decimal string and never changes for
	// the lifetime of the record. Zero means "not assigned yet".
	RecordID int64

	// Calories holds a calorie count coerced from client input. Anything
	// that does not parse as a number counts as zero.
	Calories int64

	// MealRecord is one logged food entry. Field tags match the JSON API
	// payloads end to end.
	MealRecord struct {
		ID       RecordID `json:"id,omitempty"`
		Date     string   `json:"date"`
		Slot     string   `json:"meal"`
		FoodName string   `json:"foodName"`
		Quantity string   `json:"quantity"`
		Unit     string   `json:"unit"`
		Calories Calories `json:"calories"`
	}
)

// ParseRecordID parses the wire representation of a record identifier.
func ParseRecordID(s string) (RecordID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid record id")
	}
	return RecordID(n), nil
}

func (id RecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// MarshalJSON renders the identifier as an opaque string token.
func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts both the canonical string form and a bare number,
// since hand-written clients tend to send either.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseRecordID(s)
		if perr != nil {
			return perr
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("invalid record id")
	}
	if n <= 0 {
		return errors.New("invalid record id")
	}
	*id = RecordID(n)
	return nil
}

// ParseCalories coerces free-form input to a calorie count. It accepts
// integer and decimal forms (fractions truncated) and treats everything
// else, including the empty string, as zero.
func ParseCalories(s string) Calories {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Calories(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Calories(int64(f))
	}
	return 0
}

// UnmarshalJSON coerces a JSON number or string to a calorie count. A
// value that fails to parse is zero, never an error: a malformed calorie
// field must not reject the whole record.
func (c *Calories) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = Calories(int64(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ParseCalories(s)
		return nil
	}
	*c = 0
	return nil
}

// ValidDate reports whether s is a real calendar day in DateLayout form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Today returns the current calendar day in DateLayout form.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// Validate checks the required fields of a record. The create endpoint is
// deliberately lenient about these (the browser client enforces them before
// submitting), so validation failures there are logged rather than fatal.
func (m MealRecord) Validate() error {
	if strings.TrimSpace(m.Slot) == "" {
		return ErrEmptySlot
	}
	if strings.TrimSpace(m.FoodName) == "" {
		return ErrEmptyFood
	}
	if strings.TrimSpace(m.Quantity) == "" {
		return ErrEmptyQuantity
	}
	if strings.TrimSpace(m.Unit) == "" {
		return ErrEmptyUnit
	}
	if m.Date != "" && !ValidDate(m.Date) {
		return ErrInvalidDate
	}
	return nil
}
