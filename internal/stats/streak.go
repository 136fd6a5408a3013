package stats

import (
	"sort"
	"time"

	"github.com/pointerquest/engine/internal/domain"
)

const dayFormat = "2006-01-02"

func dayKey(t time.Time) string {
	return t.Format(dayFormat)
}

// dayOf normalizes a timestamp to local midnight
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// completionDays returns the unique calendar days carrying at least one
// lesson completion, normalized to midnight and sorted ascending
func completionDays(progress []domain.LessonProgress) []time.Time {
	byKey := make(map[string]time.Time)
	for _, lp := range progress {
		if lp.CompletedAt == nil {
			continue
		}
		day := dayOf(*lp.CompletedAt)
		byKey[dayKey(day)] = day
	}

	days := make([]time.Time, 0, len(byKey))
	for _, day := range byKey {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// streaks computes the current and longest runs of consecutive completion
// days. The current streak is anchored at today; with grace enabled a
// streak ending yesterday still counts while today is empty, instead of
// resetting to zero mid-day.
func streaks(days []time.Time, today time.Time, grace bool) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	seen := make(map[string]bool, len(days))
	for _, d := range days {
		seen[dayKey(d)] = true
	}

	// Longest run anywhere in history. AddDate survives DST shifts where
	// a plain 24h comparison would not.
	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	anchor := today
	if !seen[dayKey(anchor)] {
		if !grace {
			return 0, longest
		}
		anchor = anchor.AddDate(0, 0, -1)
		if !seen[dayKey(anchor)] {
			return 0, longest
		}
	}

	current = 1
	for seen[dayKey(anchor.AddDate(0, 0, -1))] {
		current++
		anchor = anchor.AddDate(0, 0, -1)
	}
	return current, longest
}
