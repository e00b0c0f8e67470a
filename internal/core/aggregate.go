package core

import "sort"

// DayBucket groups the meal records of one calendar day together with
// their summed calories. Buckets are derived on demand and never stored.
type DayBucket struct {
	Meals         []MealRecord `json:"meals"`
	TotalCalories int64        `json:"totalCalories"`
}

// GroupByDate builds the grouped snapshot the API returns: one bucket per
// distinct date, records kept in input order, totals recomputed from
// scratch. Pure function; an empty input yields an empty (non-nil) map.
func GroupByDate(records []MealRecord) map[string]DayBucket {
	grouped := make(map[string]DayBucket, len(records))
	for _, m := range records {
		b := grouped[m.Date]
		b.Meals = append(b.Meals, m)
		b.TotalCalories += int64(m.Calories)
		grouped[m.Date] = b
	}
	return grouped
}

// SortedDates returns the snapshot's keys in ascending order. Kept here so
// the server-rendered view and tests share one definition with the
// browser client's dateList derivation.
func SortedDates(grouped map[string]DayBucket) []string {
	dates := make([]string, 0, len(grouped))
	for d := range grouped {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
