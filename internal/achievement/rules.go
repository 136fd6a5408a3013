// Package achievement holds the static rule table and its stateless
// evaluator. Rules are pure predicates over a state snapshot; the
// package never mutates anything and keeps no memory between calls.
package achievement

import (
	"sort"

	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/stats"
)

// Facts bundles the read-side views a predicate may consult. All fields
// are treated as immutable inputs.
type Facts struct {
	Snapshot *domain.Snapshot
	Stats    stats.ProgressStats
	Topics   []stats.TopicProgress
}

// Definition is one static achievement rule: identity, presentation
// metadata, and the predicate deciding when it unlocks.
type Definition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	XP          int    `json:"xp"`

	Predicate func(Facts) bool `json:"-"`
}

// definitions is the full rule table. Slice order is evaluation order
// and therefore unlock order when a single mutation satisfies several
// rules at once.
var definitions = []Definition{
	{
		ID:          "first_pointer",
		Title:       "First Pointer",
		Description: "Complete your first lesson",
		Icon:        "👆",
		XP:          10,
		Predicate:   completedAtLeast(1),
	},
	{
		ID:          "stack_starter",
		Title:       "Stack Starter",
		Description: "Complete 5 lessons",
		Icon:        "📚",
		XP:          25,
		Predicate:   completedAtLeast(5),
	},
	{
		ID:          "double_digits",
		Title:       "Double Digits",
		Description: "Complete 10 lessons",
		Icon:        "🔟",
		XP:          50,
		Predicate:   completedAtLeast(10),
	},
	{
		ID:          "quarter_milestone",
		Title:       "Quarter Milestone",
		Description: "Complete a quarter of the curriculum",
		Icon:        "🗺️",
		XP:          75,
		Predicate:   completionRateAtLeast(0.25),
	},
	{
		ID:          "halfway_there",
		Title:       "Halfway There",
		Description: "Complete half of the curriculum",
		Icon:        "⚖️",
		XP:          100,
		Predicate:   completionRateAtLeast(0.5),
	},
	{
		ID:          "memory_master",
		Title:       "Memory Master",
		Description: "Complete every lesson in the curriculum",
		Icon:        "🧠",
		XP:          500,
		Predicate:   completionRateAtLeast(1),
	},
	{
		ID:          "perfectionist",
		Title:       "Perfectionist",
		Description: "Score a perfect 100 on any lesson",
		Icon:        "💯",
		XP:          50,
		Predicate:   hasPerfectScore,
	},
	{
		ID:          "sharpshooter",
		Title:       "Sharpshooter",
		Description: "Score 90 or higher on 5 consecutive lessons",
		Icon:        "🎯",
		XP:          100,
		Predicate:   hasConsecutiveHighScores(90, 5),
	},
	{
		ID:          "three_day_streak",
		Title:       "Warming Up",
		Description: "Study 3 days in a row",
		Icon:        "🔥",
		XP:          25,
		Predicate:   streakAtLeast(3),
	},
	{
		ID:          "week_streak",
		Title:       "On Fire",
		Description: "Study 7 days in a row",
		Icon:        "📆",
		XP:          75,
		Predicate:   streakAtLeast(7),
	},
	{
		ID:          "month_streak",
		Title:       "Unstoppable",
		Description: "Study 30 days in a row",
		Icon:        "🏅",
		XP:          300,
		Predicate:   streakAtLeast(30),
	},
	{
		ID:          "topic_master",
		Title:       "Topic Master",
		Description: "Complete every lesson in one topic",
		Icon:        "🎓",
		XP:          150,
		Predicate:   hasMasteredTopic,
	},
	{
		ID:          "marathon_runner",
		Title:       "Marathon Runner",
		Description: "Spend 10 hours studying in total",
		Icon:        "🏃",
		XP:          100,
		Predicate:   totalTimeAtLeast(10 * 60 * 60),
	},
	{
		ID:          "explorer",
		Title:       "Explorer",
		Description: "Attempt lessons in 3 different topics",
		Icon:        "🧭",
		XP:          50,
		Predicate:   attemptedTopicsAtLeast(3),
	},
}

// Evaluate runs every rule not yet in unlocked against the given facts
// and returns the newly qualifying definitions in table order.
// Idempotent: once the caller folds the returned ids into unlocked, a
// second call with the same facts returns nothing.
func Evaluate(facts Facts, unlocked map[string]bool) []Definition {
	var newly []Definition
	for _, def := range definitions {
		if unlocked[def.ID] {
			continue
		}
		if def.Predicate(facts) {
			newly = append(newly, def)
		}
	}
	return newly
}

// UnlockedSet converts a profile's unlock records into the id set
// Evaluate expects.
func UnlockedSet(achievements []domain.Achievement) map[string]bool {
	set := make(map[string]bool, len(achievements))
	for _, a := range achievements {
		set[a.ID] = true
	}
	return set
}

// Definitions returns a copy of the rule table in evaluation order.
func Definitions() []Definition {
	defs := make([]Definition, len(definitions))
	copy(defs, definitions)
	return defs
}

// DefinitionByID looks up one rule by id.
func DefinitionByID(id string) (Definition, bool) {
	for _, def := range definitions {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}

// ----------------------------------------------------------------------------
// Predicates
// ----------------------------------------------------------------------------

func completedAtLeast(n int) func(Facts) bool {
	return func(f Facts) bool {
		return f.Stats.CompletedLessons >= n
	}
}

func completionRateAtLeast(rate float64) func(Facts) bool {
	return func(f Facts) bool {
		return f.Stats.CompletedLessons > 0 && f.Stats.CompletionRate >= rate
	}
}

// streakAtLeast checks the longest streak because it is monotonic:
// a rule satisfied once stays satisfied, matching the never-revoked
// unlock contract even when the evaluation happens after a gap day.
func streakAtLeast(days int) func(Facts) bool {
	return func(f Facts) bool {
		return f.Stats.LongestStreak >= days
	}
}

func totalTimeAtLeast(seconds int) func(Facts) bool {
	return func(f Facts) bool {
		return f.Stats.TotalTimeSpentSeconds >= seconds
	}
}

func hasPerfectScore(f Facts) bool {
	if f.Snapshot == nil {
		return false
	}
	for _, lp := range f.Snapshot.Progress {
		if lp.BestScore >= 100 {
			return true
		}
	}
	return false
}

// hasConsecutiveHighScores reports a run of runLength consecutive lesson
// ids all carrying a best score of at least minScore.
func hasConsecutiveHighScores(minScore float64, runLength int) func(Facts) bool {
	return func(f Facts) bool {
		if f.Snapshot == nil {
			return false
		}

		ids := make([]int, 0, len(f.Snapshot.Progress))
		for _, lp := range f.Snapshot.Progress {
			if lp.BestScore >= minScore {
				ids = append(ids, lp.LessonID)
			}
		}
		if len(ids) < runLength {
			return false
		}
		sort.Ints(ids)

		run := 1
		for i := 1; i < len(ids); i++ {
			if ids[i] == ids[i-1]+1 {
				run++
				if run >= runLength {
					return true
				}
			} else {
				run = 1
			}
		}
		return false
	}
}

func hasMasteredTopic(f Facts) bool {
	for _, tp := range f.Topics {
		if tp.Total > 0 && tp.Completed >= tp.Total {
			return true
		}
	}
	return false
}

func attemptedTopicsAtLeast(n int) func(Facts) bool {
	return func(f Facts) bool {
		if f.Snapshot == nil {
			return false
		}

		touched := 0
		for _, tp := range f.Topics {
			for _, lp := range f.Snapshot.Progress {
				if lp.LessonID >= tp.From && lp.LessonID <= tp.To {
					touched++
					break
				}
			}
		}
		return touched >= n
	}
}
