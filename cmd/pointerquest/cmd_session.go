package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pointerquest/engine/internal/scheduler"
)

// cmdSession manages study sessions
func cmdSession(args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "start":
		return cmdSessionStart()
	case "end":
		return cmdSessionEnd(args[1:])
	case "list":
		return cmdSessionList()
	default:
		return fmt.Errorf("unknown session command: %s (valid: start, end, list)", sub)
	}
}

func cmdSessionStart() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.svc.StartSession()
	if err != nil {
		return err
	}

	fmt.Printf("Study session started at %s.\n", sess.StartedAt.Format("15:04"))
	fmt.Println("End it with: pointerquest session end")
	return a.Close()
}

func cmdSessionEnd(args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.svc.EndSession(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("No active session.")
		return nil
	}

	fmt.Printf("Session ended after %s. Lessons touched: %d.\n",
		formatDuration(int(sess.Duration().Seconds())), len(sess.LessonsTouched))
	return a.Close()
}

func cmdSessionList() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.svc.GetSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Start one with: pointerquest session start")
		return nil
	}

	fmt.Println("Study Sessions")
	fmt.Println("==============")
	for _, s := range sessions {
		state := formatDuration(int(s.Duration().Seconds()))
		if s.Active() {
			state = "active"
		}
		line := fmt.Sprintf("%s  %-7s lessons %d",
			s.StartedAt.Format("2006-01-02 15:04"), state, len(s.LessonsTouched))
		if s.Notes != "" {
			line += "  " + s.Notes
		}
		fmt.Println(line)
	}
	return nil
}

// cmdStudy runs an attached study session: it stays in the foreground
// and ends the session on Ctrl+C. Autosave runs while attached when
// configured.
func cmdStudy(args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	unlocked := watchAchievements(a.svc)

	sess, err := a.svc.StartSession()
	if err != nil {
		return err
	}
	fmt.Printf("Study session started at %s. Press Ctrl+C to end it.\n",
		sess.StartedAt.Format("15:04"))

	var autosave *scheduler.Scheduler
	if minutes := a.cfg.Storage.AutosaveMinutes; minutes > 0 {
		autosave = scheduler.New(a.svc, time.Duration(minutes)*time.Minute, slog.Default())
		autosave.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)
	fmt.Println()

	if autosave != nil {
		autosave.Stop()
	}

	ended, err := a.svc.EndSession(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if ended != nil {
		fmt.Printf("Session ended after %s. Lessons touched: %d.\n",
			formatDuration(int(ended.Duration().Seconds())), len(ended.LessonsTouched))
	}
	printUnlocks(*unlocked)
	return a.Close()
}
