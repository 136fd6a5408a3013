// Package report renders progress statistics into an Excel workbook.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/progress"
	"github.com/pointerquest/engine/internal/stats"
)

const (
	overviewSheet     = "Overview"
	topicsSheet       = "Topics"
	activitySheet     = "Recent Activity"
	achievementsSheet = "Achievements"

	timeLayout = "2006-01-02 15:04"
)

// Data bundles everything one progress report renders.
type Data struct {
	Profile      *domain.StudentProfile
	Overview     stats.ProgressStats
	Topics       []stats.TopicProgress
	Activity     []stats.DailyActivity
	Achievements []progress.UnlockedAchievement

	// GeneratedAt stamps the report header; zero means now.
	GeneratedAt time.Time
}

// Write renders the report workbook at path, overwriting any existing
// file.
func Write(path string, data Data) error {
	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range []string{overviewSheet, topicsSheet, activitySheet, achievementsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := writeOverview(f, data); err != nil {
		return err
	}
	if err := writeTopics(f, data.Topics); err != nil {
		return err
	}
	if err := writeActivity(f, data.Activity); err != nil {
		return err
	}
	if err := writeAchievements(f, data.Achievements); err != nil {
		return err
	}

	index, err := f.GetSheetIndex(overviewSheet)
	if err != nil {
		return fmt.Errorf("locate overview sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, data Data) error {
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	rows := [][]any{
		{"Pointer Quest Progress Report"},
		{"Generated", generated.Format(timeLayout)},
		{},
		{"Student", data.Profile.Name},
	}
	if data.Profile.Email != "" {
		rows = append(rows, []any{"Email", data.Profile.Email})
	}
	rows = append(rows,
		[]any{"Member Since", data.Profile.CreatedAt.Format("2006-01-02")},
		[]any{},
		[]any{"Lessons Completed", fmt.Sprintf("%d of %d", data.Overview.CompletedLessons, data.Overview.TotalLessons)},
		[]any{"Completion", fmt.Sprintf("%.1f%%", data.Overview.CompletionRate*100)},
		[]any{"Average Score", data.Overview.AverageScore},
		[]any{"Time Invested", formatDuration(data.Overview.TotalTimeSpentSeconds)},
		[]any{"Current Streak", fmt.Sprintf("%d days", data.Overview.CurrentStreak)},
		[]any{"Longest Streak", fmt.Sprintf("%d days", data.Overview.LongestStreak)},
		[]any{"Achievements Unlocked", len(data.Achievements)},
	)

	for i, row := range rows {
		if err := setRow(f, overviewSheet, i+1, row); err != nil {
			return err
		}
	}
	return setWidths(f, overviewSheet, map[string]float64{"A": 24, "B": 36})
}

func writeTopics(f *excelize.File, topics []stats.TopicProgress) error {
	header := []any{"Topic", "Lessons", "Completed", "Total", "Progress", "Average Score"}
	if err := setRow(f, topicsSheet, 1, header); err != nil {
		return err
	}
	for i, t := range topics {
		row := []any{
			t.Topic,
			fmt.Sprintf("%d-%d", t.From, t.To),
			t.Completed,
			t.Total,
			fmt.Sprintf("%.1f%%", t.Percentage),
			t.AverageScore,
		}
		if err := setRow(f, topicsSheet, i+2, row); err != nil {
			return err
		}
	}
	return setWidths(f, topicsSheet, map[string]float64{"A": 28, "B": 12})
}

func writeActivity(f *excelize.File, activity []stats.DailyActivity) error {
	header := []any{"Date", "Lessons Completed", "Time (minutes)", "Average Score"}
	if err := setRow(f, activitySheet, 1, header); err != nil {
		return err
	}
	for i, day := range activity {
		row := []any{
			day.Date,
			day.LessonsCompleted,
			day.TimeSpentSeconds / 60,
			day.AverageScore,
		}
		if err := setRow(f, activitySheet, i+2, row); err != nil {
			return err
		}
	}
	return setWidths(f, activitySheet, map[string]float64{"A": 14, "B": 18, "C": 14, "D": 14})
}

func writeAchievements(f *excelize.File, unlocked []progress.UnlockedAchievement) error {
	header := []any{"Achievement", "Description", "XP", "Unlocked"}
	if err := setRow(f, achievementsSheet, 1, header); err != nil {
		return err
	}
	for i, a := range unlocked {
		title := a.Title
		if a.Icon != "" {
			title = a.Icon + " " + a.Title
		}
		row := []any{
			title,
			a.Description,
			a.XP,
			a.UnlockedAt.Format(timeLayout),
		}
		if err := setRow(f, achievementsSheet, i+2, row); err != nil {
			return err
		}
	}
	return setWidths(f, achievementsSheet, map[string]float64{"A": 26, "B": 52, "C": 8, "D": 18})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set %s column width: %w", sheet, err)
		}
	}
	return nil
}

// formatDuration renders seconds as "2h 30m" or "45m".
func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
