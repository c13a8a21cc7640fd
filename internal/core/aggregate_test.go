package core

import (
	"testing"
	"time"
)

func entry(category string, amount int64, ts time.Time) Record {
	return Record{ID: NewID(), Title: category, Amount: amount, Category: category, Timestamp: ts}
}

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, Zone())
}

func TestCategoryTotals(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("food", 100, at(2025, time.May, 1, 9, 0)),
		entry("food", 50, at(2025, time.May, 1, 10, 0)),
		entry("shop", 30, at(2025, time.May, 2, 11, 0)),
		entry("transport", 999, at(2025, time.April, 30, 11, 0)), // outside month
	}

	got := CategoryTotals(entries, ref)
	want := []CategoryTotal{{"food", 150}, {"shop", 30}}
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestCategoryTotalsTieKeepsInputOrder(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("zoo", 40, at(2025, time.May, 3, 8, 0)),
		entry("art", 40, at(2025, time.May, 4, 8, 0)),
	}
	got := CategoryTotals(entries, ref)
	if got[0].Category != "zoo" || got[1].Category != "art" {
		t.Fatalf("tie should keep first-encountered order, got %+v", got)
	}
}

func TestCategoryTotalsUnknownCategoryIsOwnGroup(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	got := CategoryTotals([]Record{entry("quantum", 7, ref)}, ref)
	if len(got) != 1 || got[0].Category != "quantum" || got[0].Total != 7 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestDailyTotals(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("food", 120, at(2025, time.May, 22, 19, 0)),
		entry("food", 50, at(2025, time.May, 20, 12, 0)),
	}

	got := DailyTotals(entries, ref, true)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if got[0].Day.Day() != 20 || got[0].Total != 50 {
		t.Fatalf("expected (20, 50) first, got %+v", got[0])
	}
	if got[1].Day.Day() != 22 || got[1].Total != 120 {
		t.Fatalf("expected (22, 120) second, got %+v", got[1])
	}
}

func TestDailyTotalsMonthBoundary(t *testing.T) {
	// Midnight on the 1st belongs to the new month; 23:59 on the last
	// day of April stays in April.
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("a", 10, at(2025, time.May, 1, 0, 0)),
		entry("b", 20, at(2025, time.April, 30, 23, 59)),
	}
	got := DailyTotals(entries, ref, true)
	if len(got) != 1 || got[0].Total != 10 {
		t.Fatalf("expected only the May 1 entry, got %+v", got)
	}
}

func TestDailyTotalsBucketsByZoneNotOffset(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	// 23:30 UTC on May 19 is 07:30 on May 20 in +08:00.
	utcEntry := entry("food", 50, time.Date(2025, 5, 19, 23, 30, 0, 0, time.UTC))
	got := DailyTotals([]Record{utcEntry}, ref, true)
	if len(got) != 1 || got[0].Day.Day() != 20 {
		t.Fatalf("expected bucketing on May 20, got %+v", got)
	}
}

func TestCategoryDailySeries(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("shop", 30, at(2025, time.May, 2, 10, 0)),
		entry("food", 100, at(2025, time.May, 1, 9, 0)),
		entry("food", 50, at(2025, time.May, 3, 9, 0)),
	}

	got := CategoryDailySeries(entries, ref)
	if len(got) != 2 {
		t.Fatalf("expected 2 series, got %d", len(got))
	}
	// food has the larger total and comes first.
	if got[0].Category != "food" || len(got[0].Daily) != 2 {
		t.Fatalf("unexpected first series %+v", got[0])
	}
	if got[0].Daily[0].Day.Day() != 1 || got[0].Daily[1].Day.Day() != 3 {
		t.Fatalf("food series not ascending by day: %+v", got[0].Daily)
	}
	if got[1].Category != "shop" || got[1].Daily[0].Total != 30 {
		t.Fatalf("unexpected second series %+v", got[1])
	}
}

func TestDailyEntryCounts(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("food", 10, at(2025, time.May, 2, 9, 0)),
		entry("food", 20, at(2025, time.May, 2, 10, 0)),
		entry("shop", 30, at(2025, time.May, 7, 10, 0)),
		entry("shop", 30, at(2025, time.June, 7, 10, 0)), // outside month
	}
	got := DailyEntryCounts(entries, ref)
	if len(got) != 2 || got[2] != 2 || got[7] != 1 {
		t.Fatalf("unexpected counts %v", got)
	}
	if _, present := got[3]; present {
		t.Fatalf("day without entries must be absent")
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		ref  time.Time
		want int
	}{
		{at(2025, time.February, 10, 0, 0), 28},
		{at(2024, time.February, 10, 0, 0), 29}, // leap year
		{at(2025, time.April, 1, 0, 0), 30},
		{at(2025, time.May, 31, 23, 59), 31},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.ref); got != tc.want {
			t.Fatalf("%s expected %d, got %d", tc.ref, tc.want, got)
		}
	}
}

func TestAggregatesEmptyInput(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	if got := CategoryTotals(nil, ref); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := DailyTotals(nil, ref, true); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := CategoryDailySeries(nil, ref); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if got := DailyEntryCounts(nil, ref); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil map, got %#v", got)
	}
}

func TestAggregatesDoNotMutateInput(t *testing.T) {
	ref := at(2025, time.May, 15, 12, 0)
	entries := []Record{
		entry("b", 1, at(2025, time.May, 2, 9, 0)),
		entry("a", 2, at(2025, time.May, 1, 9, 0)),
	}
	before := make([]Record, len(entries))
	copy(before, entries)

	CategoryTotals(entries, ref)
	DailyTotals(entries, ref, true)
	CategoryDailySeries(entries, ref)
	DailyEntryCounts(entries, ref)

	for i := range before {
		if entries[i] != before[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}
