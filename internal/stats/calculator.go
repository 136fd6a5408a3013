package stats

import (
	"time"

	"github.com/pointerquest/engine/internal/config"
	"github.com/pointerquest/engine/internal/domain"
)

// ProgressStats is the aggregate overview of a learner's progress
type ProgressStats struct {
	TotalLessons          int     `json:"totalLessons"`
	CompletedLessons      int     `json:"completedLessons"`
	CompletionRate        float64 `json:"completionRate"` // 0.0 - 1.0
	AverageScore          float64 `json:"averageScore"`
	TotalTimeSpentSeconds int     `json:"totalTimeSpentSeconds"`
	CurrentStreak         int     `json:"currentStreak"` // consecutive days
	LongestStreak         int     `json:"longestStreak"`
}

// TopicProgress is the per-topic aggregate
type TopicProgress struct {
	Topic        string  `json:"topic"`
	From         int     `json:"from"`
	To           int     `json:"to"`
	Completed    int     `json:"completed"`
	Total        int     `json:"total"`
	Percentage   float64 `json:"percentage"` // 0 - 100
	AverageScore float64 `json:"averageScore"`
}

// DailyActivity is one day of the recent-activity window
type DailyActivity struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	LessonsCompleted int     `json:"lessonsCompleted"`
	TimeSpentSeconds int     `json:"timeSpentSeconds"`
	AverageScore     float64 `json:"averageScore"`
}

// DefaultActivityDays is the default recent-activity window length
const DefaultActivityDays = 7

// Calculator computes read-side views over a state snapshot. Every method
// is a pure function of (snapshot, clock): no mutation, identical results
// for identical input state.
type Calculator struct {
	curriculum   config.Curriculum
	totalLessons int
	streakGrace  bool
	now          func() time.Time
}

// NewCalculator creates a calculator for the given curriculum layout.
// totalLessons is the configured catalog size; streakGrace keeps a streak
// counted from yesterday while today has no completion yet.
func NewCalculator(curriculum config.Curriculum, totalLessons int, streakGrace bool) *Calculator {
	return &Calculator{
		curriculum:   curriculum,
		totalLessons: totalLessons,
		streakGrace:  streakGrace,
		now:          time.Now,
	}
}

// Overview returns the aggregate progress statistics
func (c *Calculator) Overview(snap *domain.Snapshot) ProgressStats {
	stats := ProgressStats{TotalLessons: c.totalLessons}

	if snap.Profile != nil {
		stats.CompletedLessons = len(snap.Profile.CompletedLessons)
	}

	if c.totalLessons > 0 {
		rate := float64(stats.CompletedLessons) / float64(c.totalLessons)
		stats.CompletionRate = min(max(rate, 0), 1)
	}

	if len(snap.Progress) > 0 {
		sum := 0.0
		for _, lp := range snap.Progress {
			sum += lp.BestScore
			stats.TotalTimeSpentSeconds += lp.TimeSpentSeconds
		}
		stats.AverageScore = sum / float64(len(snap.Progress))
	}

	days := completionDays(snap.Progress)
	stats.CurrentStreak, stats.LongestStreak = streaks(days, dayOf(c.now()), c.streakGrace)

	return stats
}

// TopicBreakdown returns per-topic completion and score aggregates,
// ordered as the curriculum lays its topics out
func (c *Calculator) TopicBreakdown(snap *domain.Snapshot) []TopicProgress {
	breakdown := make([]TopicProgress, 0, len(c.curriculum.Topics))

	for _, tr := range c.curriculum.Topics {
		tp := TopicProgress{
			Topic: tr.Topic,
			From:  tr.From,
			To:    tr.To,
			Total: tr.Lessons(),
		}

		if snap.Profile != nil {
			for _, id := range snap.Profile.CompletedLessons {
				if tr.Contains(id) {
					tp.Completed++
				}
			}
		}

		sum, count := 0.0, 0
		for _, lp := range snap.Progress {
			if tr.Contains(lp.LessonID) {
				sum += lp.BestScore
				count++
			}
		}
		if count > 0 {
			tp.AverageScore = sum / float64(count)
		}

		if tp.Total > 0 {
			tp.Percentage = min(float64(tp.Completed)/float64(tp.Total), 1) * 100
		}

		breakdown = append(breakdown, tp)
	}

	return breakdown
}

// RecentActivity returns one entry per calendar day in the trailing
// window, oldest to newest, zero-filled for days without activity.
// Lessons and scores count completions stamped on that day; time spent
// comes from study session intervals clipped to the day.
func (c *Calculator) RecentActivity(snap *domain.Snapshot, days int) []DailyActivity {
	if days <= 0 {
		days = DefaultActivityDays
	}

	now := c.now()
	today := dayOf(now)
	start := today.AddDate(0, 0, -(days - 1))

	activity := make([]DailyActivity, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		key := dayKey(day)
		activity[i] = DailyActivity{Date: key}
		index[key] = i
	}

	scoreSums := make([]float64, days)
	scoreCounts := make([]int, days)
	for _, lp := range snap.Progress {
		if lp.CompletedAt == nil {
			continue
		}
		if i, ok := index[dayKey(*lp.CompletedAt)]; ok {
			activity[i].LessonsCompleted++
			scoreSums[i] += lp.BestScore
			scoreCounts[i]++
		}
	}
	for i := range activity {
		if scoreCounts[i] > 0 {
			activity[i].AverageScore = scoreSums[i] / float64(scoreCounts[i])
		}
	}

	for _, sess := range snap.Sessions {
		sessEnd := now
		if sess.EndedAt != nil {
			sessEnd = *sess.EndedAt
		}
		for i := 0; i < days; i++ {
			dayStart := start.AddDate(0, 0, i)
			dayEnd := dayStart.AddDate(0, 0, 1)
			activity[i].TimeSpentSeconds += overlapSeconds(sess.StartedAt, sessEnd, dayStart, dayEnd)
		}
	}

	return activity
}

// overlapSeconds returns the length of the intersection of [aStart,aEnd)
// and [bStart,bEnd) in whole seconds
func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) int {
	lo := aStart
	if bStart.After(lo) {
		lo = bStart
	}
	hi := aEnd
	if bEnd.Before(hi) {
		hi = bEnd
	}
	if !hi.After(lo) {
		return 0
	}
	return int(hi.Sub(lo).Seconds())
}
