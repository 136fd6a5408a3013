package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pointerquest/engine/internal/config"
	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/progress"
	"github.com/pointerquest/engine/internal/storage/local"
	"github.com/pointerquest/engine/internal/storage/sqlite"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "profile":
		err = cmdProfile(os.Args[2:])
	case "record":
		err = cmdRecord(os.Args[2:])
	case "lessons":
		err = cmdLessons(os.Args[2:])
	case "session":
		err = cmdSession(os.Args[2:])
	case "study":
		err = cmdStudy(os.Args[2:])
	case "stats":
		err = cmdStats()
	case "topics":
		err = cmdTopics()
	case "activity":
		err = cmdActivity(os.Args[2:])
	case "achievements":
		err = cmdAchievements()
	case "export":
		err = cmdExport(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "reset":
		err = cmdReset()
	case "report":
		err = cmdReport(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("pointerquest %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Pointer Quest - Student Progress & Achievement Engine

Usage:
  pointerquest <command> [arguments]

Profile Commands:
  init <name> [email]     Create the student profile
  profile                 Show the profile
  profile set <f> <v>     Update name or email

Progress Commands:
  record <lesson> <score> [minutes] [notes]
                          Record a lesson attempt
  lessons [lesson]        Show recorded lesson progress

Session Commands:
  session start           Start a study session
  session end [notes]     End the active session
  session list            List study sessions
  study [notes]           Run an attached session (Ctrl+C ends it)

Statistics Commands:
  stats                   Show the progress overview
  topics                  Show per-topic progress
  activity [days]         Show recent daily activity
  achievements            Show achievements

Data Commands:
  export <file>           Export progress as JSON
  import <file>           Import a progress export
  report <file>           Write an Excel progress report
  reset                   Delete all progress (keeps identity)

Other:
  help                    Show this help message
  version                 Show version information

Examples:
  pointerquest init "Ada Lovelace" ada@example.com
  pointerquest record 7 85 12     # lesson 7, score 85, 12 minutes
  pointerquest stats
  pointerquest report progress.xlsx`)
}

// app bundles the progress service with the resources behind it.
type app struct {
	svc *progress.Service
	cfg *config.Config
	db  *sqlite.DB // nil for the json backend
}

func openApp() (*app, error) {
	// An optional .env in the working directory feeds the
	// POINTERQUEST_* overrides.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Debug)

	dataDir, err := cfg.EnsureDataDir()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	var snapshots progress.SnapshotStore
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(filepath.Join(dataDir, "progress.db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		snapshots = sqlite.NewSnapshotStore(db)
	default:
		store, err := local.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		snapshots = store
	}

	a.svc = progress.NewService(cfg, snapshots, slog.Default())
	return a, nil
}

// Close flushes pending state and releases the backend. Safe to call
// more than once.
func (a *app) Close() error {
	err := a.svc.Close()
	if a.db != nil {
		a.db.Close()
	}
	return err
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// watchAchievements collects unlock events published while a command
// runs, so they can be printed after the command's own output.
func watchAchievements(svc *progress.Service) *[]domain.AchievementUnlockedEvent {
	var events []domain.AchievementUnlockedEvent
	svc.Events().Subscribe("achievement.unlocked", func(event domain.Event) {
		if e, ok := event.(domain.AchievementUnlockedEvent); ok {
			events = append(events, e)
		}
	})
	return &events
}

func printUnlocks(events []domain.AchievementUnlockedEvent) {
	for _, e := range events {
		fmt.Printf("\n%s Achievement unlocked: %s (+%d XP)\n   %s\n", e.Icon, e.Title, e.XP, e.Description)
	}
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
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
