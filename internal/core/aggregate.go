package core

import (
	"sort"
	"time"
)

// Aggregation over in-memory record collections. All functions are pure:
// input slices are never mutated and empty input yields empty results.
// Month and day boundaries are civil boundaries in Zone(): an instant
// belongs to the day obtained by truncating it to local midnight,
// inclusive of the start instant and exclusive of the next day's start.

type (
	// CategoryTotal is the summed amount for one category.
	CategoryTotal struct {
		Category string
		Total    int64
	}

	// DailyTotal is the summed amount for one civil day. Day is the
	// start-of-day instant in Zone().
	DailyTotal struct {
		Day   time.Time
		Total int64
	}

	// CategorySeries is one category's per-day totals, days ascending.
	CategorySeries struct {
		Category string
		Daily    []DailyTotal
	}
)

// CategoryTotals filters entries to ref's civil month, groups them by exact
// category string and sums amounts. Results are sorted by total descending;
// ties keep the order categories first appeared in the input.
func CategoryTotals(entries []Record, ref time.Time) []CategoryTotal {
	totals := make(map[string]int64)
	var order []string
	for _, e := range entries {
		if !sameCivilMonth(e.Timestamp, ref) {
			continue
		}
		if _, seen := totals[e.Category]; !seen {
			order = append(order, e.Category)
		}
		totals[e.Category] += e.Amount
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		out = append(out, CategoryTotal{Category: cat, Total: totals[cat]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

// DailyTotals groups entries by civil day and sums amounts, ascending by
// day. With monthOnly set, only days in ref's civil month are considered.
func DailyTotals(entries []Record, ref time.Time, monthOnly bool) []DailyTotal {
	totals := make(map[time.Time]int64)
	for _, e := range entries {
		if monthOnly && !sameCivilMonth(e.Timestamp, ref) {
			continue
		}
		totals[civilDay(e.Timestamp)] += e.Amount
	}

	out := make([]DailyTotal, 0, len(totals))
	for day, total := range totals {
		out = append(out, DailyTotal{Day: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out
}

// CategoryDailySeries filters entries to ref's civil month and produces one
// per-day series per category. Categories are ordered as CategoryTotals
// orders them; each series is ascending by day.
func CategoryDailySeries(entries []Record, ref time.Time) []CategorySeries {
	byCategory := make(map[string][]Record)
	for _, e := range entries {
		if !sameCivilMonth(e.Timestamp, ref) {
			continue
		}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	ordered := CategoryTotals(entries, ref)
	out := make([]CategorySeries, 0, len(ordered))
	for _, ct := range ordered {
		out = append(out, CategorySeries{
			Category: ct.Category,
			Daily:    DailyTotals(byCategory[ct.Category], ref, false),
		})
	}
	return out
}

// DailyEntryCounts filters entries to ref's civil month and counts entries
// per day of month (1..N). Days without entries are absent from the map.
func DailyEntryCounts(entries []Record, ref time.Time) map[int]int {
	counts := make(map[int]int)
	for _, e := range entries {
		if !sameCivilMonth(e.Timestamp, ref) {
			continue
		}
		_, _, day := e.CivilDate()
		counts[day]++
	}
	return counts
}

// DaysInMonth returns the number of civil days in ref's month (28-31).
func DaysInMonth(ref time.Time) int {
	local := ref.In(Zone())
	firstOfNext := time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, Zone())
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// civilDay truncates an instant to its local midnight in Zone().
func civilDay(t time.Time) time.Time {
	local := t.In(Zone())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone())
}

func sameCivilMonth(t, ref time.Time) bool {
	a := t.In(Zone())
	b := ref.In(Zone())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
