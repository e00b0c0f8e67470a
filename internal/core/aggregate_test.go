package core

import (
	"reflect"
	"testing"
)

func TestGroupByDateEmpty(t *testing.T) {
	grouped := GroupByDate(nil)
	if grouped == nil {
		t.Fatal("expected non-nil map")
	}
	if len(grouped) != 0 {
		t.Fatalf("expected empty map, got %d buckets", len(grouped))
	}
}

func TestGroupByDateBucketsAndTotals(t *testing.T) {
	records := []MealRecord{
		{ID: 1, Date: "2024-01-01", Slot: "breakfast", FoodName: "oats", Calories: 300},
		{ID: 2, Date: "2024-01-01", Slot: "lunch", FoodName: "rice", Calories: 200},
		{ID: 3, Date: "2024-01-02", Slot: "dinner", FoodName: "soup", Calories: 150},
		{ID: 4, Date: "2024-01-01", Slot: "snack", FoodName: "mystery", Calories: 0},
	}
	grouped := GroupByDate(records)

	if len(grouped) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(grouped))
	}
	day1 := grouped["2024-01-01"]
	if day1.TotalCalories != 500 {
		t.Fatalf("day1 total = %d, want 500", day1.TotalCalories)
	}
	if len(day1.Meals) != 3 {
		t.Fatalf("day1 meals = %d, want 3", len(day1.Meals))
	}
	// Records keep storage iteration order within a bucket.
	if day1.Meals[0].ID != 1 || day1.Meals[1].ID != 2 || day1.Meals[2].ID != 4 {
		t.Fatalf("day1 order = %v", []RecordID{day1.Meals[0].ID, day1.Meals[1].ID, day1.Meals[2].ID})
	}
	day2 := grouped["2024-01-02"]
	if day2.TotalCalories != 150 || len(day2.Meals) != 1 {
		t.Fatalf("day2 = %+v", day2)
	}
}

func TestGroupByDateDeterministic(t *testing.T) {
	records := []MealRecord{
		{ID: 1, Date: "2024-05-05", Calories: 10},
		{ID: 2, Date: "2024-05-06", Calories: 20},
		{ID: 3, Date: "2024-05-05", Calories: 30},
	}
	a := GroupByDate(records)
	b := GroupByDate(records)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated aggregation differs: %v vs %v", a, b)
	}
}

func TestSortedDates(t *testing.T) {
	grouped := map[string]DayBucket{
		"2024-01-03": {},
		"2024-01-01": {},
		"2023-12-31": {},
		"2024-01-02": {},
	}
	got := SortedDates(grouped)
	want := []string{"2023-12-31", "2024-01-01", "2024-01-02", "2024-01-03"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedDates = %v, want %v", got, want)
	}
	if len(SortedDates(map[string]DayBucket{})) != 0 {
		t.Fatal("empty snapshot should yield no dates")
	}
}
