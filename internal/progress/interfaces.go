package progress

import (
	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/stats"
)

// ProgressService defines the facade surface consumed by the UI layer
// (the CLI commands today, HTTP handlers tomorrow).
type ProgressService interface {
	// InitializeProfile creates the profile for this installation
	InitializeProfile(name, email string) (*domain.StudentProfile, error)

	// UpdateProfile merges partial fields into the existing profile
	UpdateProfile(update ProfileUpdate) error

	// GetProfile returns the current profile
	GetProfile() (*domain.StudentProfile, error)

	// StartSession opens a study session, implicitly closing an active one
	StartSession() (*domain.StudySession, error)

	// EndSession closes the active session; a nil session result means
	// none was active (no-op, not an error)
	EndSession(notes string) (*domain.StudySession, error)

	// GetSessions returns all recorded sessions in start order
	GetSessions() ([]domain.StudySession, error)

	// RecordLessonProgress folds one lesson attempt into the state and
	// returns the lesson's updated record
	RecordLessonProgress(req RecordRequest) (*domain.LessonProgress, error)

	// GetLessonProgress returns one lesson's record
	GetLessonProgress(lessonID int) (*domain.LessonProgress, error)

	// GetAllProgress returns every lesson record, ordered by lesson id
	GetAllProgress() ([]domain.LessonProgress, error)

	// GetProgressStats returns the aggregate progress overview
	GetProgressStats() (stats.ProgressStats, error)

	// GetTopicProgress returns per-topic aggregates in curriculum order
	GetTopicProgress() ([]stats.TopicProgress, error)

	// GetRecentActivity returns the trailing daily activity window
	GetRecentActivity(days int) ([]stats.DailyActivity, error)

	// GetAchievements returns unlock records joined with their definitions
	GetAchievements() ([]UnlockedAchievement, error)

	// ExportProgress renders the full state as a version-tagged snapshot
	ExportProgress() (*domain.Snapshot, error)

	// ImportProgress validates a snapshot and adopts it wholesale
	ImportProgress(snap *domain.Snapshot) error

	// ClearAllProgress resets everything except profile identity
	ClearAllProgress() error

	// Flush persists the current state synchronously
	Flush() error

	// Close flushes pending state and stops background work
	Close() error
}

// Ensure Service implements ProgressService
var _ ProgressService = (*Service)(nil)

// SnapshotStore defines the persistence interface for the state
// snapshot. Both the JSON file store and the SQLite store implement
// this.
type SnapshotStore interface {
	// Save persists the snapshot, replacing any previous one
	Save(snap *domain.Snapshot) error

	// Load returns the persisted snapshot; domain.ErrNotFound when
	// nothing has been persisted yet
	Load() (*domain.Snapshot, error)

	// Exists reports whether a snapshot has been persisted
	Exists() bool
}
