package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pointerquest/engine/internal/progress"
)

// cmdRecord folds one lesson attempt into the progress state
func cmdRecord(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pointerquest record <lesson> <score> [minutes] [notes]")
	}

	lessonID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid lesson id %q", args[0])
	}
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", args[1])
	}

	req := progress.RecordRequest{LessonID: lessonID, Score: score}
	rest := args[2:]
	if len(rest) > 0 {
		if minutes, err := strconv.Atoi(rest[0]); err == nil {
			req.TimeSpentSeconds = minutes * 60
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		req.Notes = strings.Join(rest, " ")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	unlocked := watchAchievements(a.svc)

	record, err := a.svc.RecordLessonProgress(req)
	if err != nil {
		return err
	}

	fmt.Printf("Lesson %d recorded: score %.0f (best %.0f, attempt %d)\n",
		record.LessonID, record.LastScore, record.BestScore, record.Attempts)
	if record.CompletedAt != nil {
		fmt.Println("Lesson completed!")
	}
	printUnlocks(*unlocked)
	return a.Close()
}

// cmdLessons shows all recorded lessons, or one lesson in detail
func cmdLessons(args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) > 0 {
		lessonID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid lesson id %q", args[0])
		}
		return showLesson(a.svc, lessonID)
	}

	records, err := a.svc.GetAllProgress()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No lessons recorded yet. Start with: pointerquest record <lesson> <score>")
		return nil
	}

	fmt.Println("Lesson Progress")
	fmt.Println("===============")
	for _, r := range records {
		status := " "
		if r.CompletedAt != nil {
			status = "*"
		}
		fmt.Printf("%s Lesson %-4d best %5.1f  last %5.1f  attempts %-3d %s\n",
			status, r.LessonID, r.BestScore, r.LastScore, r.Attempts,
			formatDuration(r.TimeSpentSeconds))
	}
	return nil
}

func showLesson(svc *progress.Service, lessonID int) error {
	r, err := svc.GetLessonProgress(lessonID)
	if err != nil {
		return err
	}

	fmt.Printf("Lesson %d\n", r.LessonID)
	fmt.Println("=========")
	fmt.Printf("Best Score:  %.1f\n", r.BestScore)
	fmt.Printf("Last Score:  %.1f\n", r.LastScore)
	fmt.Printf("Attempts:    %d\n", r.Attempts)
	fmt.Printf("Time Spent:  %s\n", formatDuration(r.TimeSpentSeconds))
	if r.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", r.CompletedAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Completed:   not yet")
	}
	if r.Notes != "" {
		fmt.Printf("Notes:       %s\n", r.Notes)
	}
	if len(r.Exercises) > 0 {
		fmt.Println("\nExercises")
		fmt.Println("---------")
		for _, ex := range r.Exercises {
			mark := "fail"
			if ex.Passed {
				mark = "pass"
			}
			fmt.Printf("  %-16s %5.1f  %s\n", ex.ExerciseID, ex.Score, mark)
		}
	}
	return nil
}
