package main

import (
	"fmt"
	"strconv"

	"github.com/pointerquest/engine/internal/achievement"
)

// cmdStats shows the aggregate progress overview
func cmdStats() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	overview, err := a.svc.GetProgressStats()
	if err != nil {
		return err
	}

	fmt.Println("Progress Overview")
	fmt.Println("=================")
	bar := renderProgressBar(overview.CompletionRate, 20)
	fmt.Printf("Completion:      %s %.1f%% (%d of %d lessons)\n",
		bar, overview.CompletionRate*100, overview.CompletedLessons, overview.TotalLessons)
	fmt.Printf("Average Score:   %.1f\n", overview.AverageScore)
	fmt.Printf("Time Invested:   %s\n", formatDuration(overview.TotalTimeSpentSeconds))
	fmt.Printf("Current Streak:  %d days\n", overview.CurrentStreak)
	fmt.Printf("Longest Streak:  %d days\n", overview.LongestStreak)
	return nil
}

// cmdTopics shows the per-topic breakdown
func cmdTopics() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topics, err := a.svc.GetTopicProgress()
	if err != nil {
		return err
	}

	fmt.Println("Progress by Topic")
	fmt.Println("=================")
	for _, t := range topics {
		bar := renderProgressBar(t.Percentage/100, 20)
		line := fmt.Sprintf("%-22s %s %3.0f%% (%d/%d)", t.Topic, bar, t.Percentage, t.Completed, t.Total)
		if t.AverageScore > 0 {
			line += fmt.Sprintf("  avg %.1f", t.AverageScore)
		}
		fmt.Println(line)
	}
	return nil
}

// cmdActivity shows the trailing daily activity window
func cmdActivity(args []string) error {
	days := 7
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			return fmt.Errorf("invalid day count %q", args[0])
		}
		days = d
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	activity, err := a.svc.GetRecentActivity(days)
	if err != nil {
		return err
	}

	fmt.Println("Recent Activity")
	fmt.Println("===============")
	for _, day := range activity {
		if day.LessonsCompleted == 0 && day.TimeSpentSeconds == 0 {
			fmt.Printf("%s  -\n", day.Date)
			continue
		}
		line := fmt.Sprintf("%s  %d completed, %s", day.Date, day.LessonsCompleted,
			formatDuration(day.TimeSpentSeconds))
		if day.AverageScore > 0 {
			line += fmt.Sprintf(", avg %.1f", day.AverageScore)
		}
		fmt.Println(line)
	}
	return nil
}

// cmdAchievements shows unlocked and still-locked achievements
func cmdAchievements() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	unlocked, err := a.svc.GetAchievements()
	if err != nil {
		return err
	}
	defs := achievement.Definitions()

	totalXP := 0
	unlockedSet := make(map[string]bool, len(unlocked))
	for _, u := range unlocked {
		unlockedSet[u.ID] = true
		totalXP += u.XP
	}

	fmt.Printf("Achievements: %d of %d unlocked (%d XP)\n", len(unlocked), len(defs), totalXP)
	fmt.Println("=====================================")

	if len(unlocked) > 0 {
		fmt.Println("\nUnlocked")
		for _, u := range unlocked {
			fmt.Printf("  %s %-18s %s  %s\n",
				u.Icon, u.Title, u.UnlockedAt.Format("2006-01-02"), u.Description)
		}
	}

	locked := 0
	for _, d := range defs {
		if !unlockedSet[d.ID] {
			locked++
		}
	}
	if locked > 0 {
		fmt.Println("\nLocked")
		for _, d := range defs {
			if unlockedSet[d.ID] {
				continue
			}
			fmt.Printf("  %-21s %s\n", d.Title, d.Description)
		}
	}
	return nil
}
