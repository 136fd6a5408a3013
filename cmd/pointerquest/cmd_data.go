package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/report"
)

// cmdExport writes the full progress snapshot as indented JSON
func cmdExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pointerquest export <file>")
	}
	path := args[0]

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.svc.ExportProgress()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	fmt.Printf("Progress exported to %s\n", path)
	return nil
}

// cmdImport adopts a progress export wholesale
func cmdImport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pointerquest import <file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	unlocked := watchAchievements(a.svc)

	if err := a.svc.ImportProgress(&snap); err != nil {
		return err
	}

	fmt.Printf("Imported %d lesson records and %d sessions for %s.\n",
		len(snap.Progress), len(snap.Sessions), snap.Profile.Name)
	printUnlocks(*unlocked)
	return a.Close()
}

// cmdReset clears all progress after an interactive confirmation
func cmdReset() error {
	fmt.Println("This deletes all lesson progress, sessions, and achievements.")
	fmt.Print("Type 'reset' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	if strings.TrimSpace(line) != "reset" {
		fmt.Println("Aborted.")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.ClearAllProgress(); err != nil {
		return err
	}
	fmt.Println("Progress cleared. Your profile identity was kept.")
	return a.Close()
}

// cmdReport renders the Excel progress report
func cmdReport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pointerquest report <file.xlsx>")
	}
	path := args[0]

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profile, err := a.svc.GetProfile()
	if err != nil {
		return err
	}
	overview, err := a.svc.GetProgressStats()
	if err != nil {
		return err
	}
	topics, err := a.svc.GetTopicProgress()
	if err != nil {
		return err
	}
	activity, err := a.svc.GetRecentActivity(30)
	if err != nil {
		return err
	}
	unlocked, err := a.svc.GetAchievements()
	if err != nil {
		return err
	}

	data := report.Data{
		Profile:      profile,
		Overview:     overview,
		Topics:       topics,
		Activity:     activity,
		Achievements: unlocked,
	}
	if err := report.Write(path, data); err != nil {
		return err
	}

	fmt.Printf("Report written to %s\n", path)
	return nil
}
