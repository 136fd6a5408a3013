package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pointerquest/engine/internal/domain"
)

// SnapshotStore persists the full engine snapshot in SQLite. The tables
// hold exactly one snapshot: Save replaces the previous contents inside
// a single transaction, so a failed save leaves the old snapshot intact.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a SQLite-backed snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save writes the snapshot, replacing whatever was stored before.
func (s *SnapshotStore) Save(snap *domain.Snapshot) error {
	if snap == nil || snap.Profile == nil {
		return fmt.Errorf("save snapshot: %w", domain.ErrMalformedSnapshot)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}

	if err := replaceSnapshot(tx, snap); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot save: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. domain.ErrNotFound is returned when
// no snapshot has been saved yet.
func (s *SnapshotStore) Load() (*domain.Snapshot, error) {
	profile, err := s.loadProfile()
	if err != nil {
		return nil, err
	}
	progress, err := s.loadProgress()
	if err != nil {
		return nil, err
	}
	sessions, err := s.loadSessions()
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		SchemaVersion: domain.SchemaVersion,
		Profile:       profile,
		Progress:      progress,
		Sessions:      sessions,
	}, nil
}

// Exists reports whether a snapshot has been saved.
func (s *SnapshotStore) Exists() bool {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM profile").Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func replaceSnapshot(tx *sql.Tx, snap *domain.Snapshot) error {
	for _, table := range []string{"achievements", "study_sessions", "lesson_progress", "profile"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertProfile(tx, snap.Profile); err != nil {
		return err
	}
	for i := range snap.Progress {
		if err := insertLessonProgress(tx, &snap.Progress[i]); err != nil {
			return err
		}
	}
	for i := range snap.Sessions {
		if err := insertSession(tx, i, &snap.Sessions[i]); err != nil {
			return err
		}
	}
	for i, a := range snap.Profile.Achievements {
		_, err := tx.Exec(
			"INSERT INTO achievements (id, position, unlocked_at) VALUES (?, ?, ?)",
			a.ID, i, a.UnlockedAt,
		)
		if err != nil {
			return fmt.Errorf("insert achievement %s: %w", a.ID, err)
		}
	}
	return nil
}

func insertProfile(tx *sql.Tx, p *domain.StudentProfile) error {
	preferences, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	completed, err := json.Marshal(p.CompletedLessons)
	if err != nil {
		return fmt.Errorf("marshal completed_lessons: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO profile (id, name, email, preferences, completed_lessons, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, string(preferences), string(completed), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func insertLessonProgress(tx *sql.Tx, lp *domain.LessonProgress) error {
	exercises, err := json.Marshal(lp.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO lesson_progress (lesson_id, best_score, last_score, time_spent_seconds,
			attempts, exercises, notes, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lp.LessonID, lp.BestScore, lp.LastScore, lp.TimeSpentSeconds,
		lp.Attempts, string(exercises), lp.Notes, nullTime(lp.CompletedAt), lp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lesson %d: %w", lp.LessonID, err)
	}
	return nil
}

func insertSession(tx *sql.Tx, position int, sess *domain.StudySession) error {
	touched, err := json.Marshal(sess.LessonsTouched)
	if err != nil {
		return fmt.Errorf("marshal lessons_touched: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO study_sessions (id, position, started_at, ended_at, lessons_touched, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, position, sess.StartedAt, nullTime(sess.EndedAt), string(touched), sess.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SnapshotStore) loadProfile() (*domain.StudentProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, name, email, preferences, completed_lessons, created_at
		FROM profile LIMIT 1`)

	var p domain.StudentProfile
	var preferencesJSON, completedJSON string
	err := row.Scan(&p.ID, &p.Name, &p.Email, &preferencesJSON, &completedJSON, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no snapshot stored", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if err := json.Unmarshal([]byte(preferencesJSON), &p.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(completedJSON), &p.CompletedLessons); err != nil {
		return nil, fmt.Errorf("unmarshal completed_lessons: %w", err)
	}

	achievements, err := s.loadAchievements()
	if err != nil {
		return nil, err
	}
	p.Achievements = achievements

	return &p, nil
}

func (s *SnapshotStore) loadProgress() ([]domain.LessonProgress, error) {
	rows, err := s.db.Query(`
		SELECT lesson_id, best_score, last_score, time_spent_seconds,
			attempts, exercises, notes, completed_at, updated_at
		FROM lesson_progress ORDER BY lesson_id`)
	if err != nil {
		return nil, fmt.Errorf("query lesson progress: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LessonProgress, 0)
	for rows.Next() {
		var lp domain.LessonProgress
		var exercisesJSON string
		var completedAt sql.NullTime
		err := rows.Scan(&lp.LessonID, &lp.BestScore, &lp.LastScore, &lp.TimeSpentSeconds,
			&lp.Attempts, &exercisesJSON, &lp.Notes, &completedAt, &lp.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan lesson progress: %w", err)
		}
		if err := json.Unmarshal([]byte(exercisesJSON), &lp.Exercises); err != nil {
			return nil, fmt.Errorf("unmarshal exercises: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			lp.CompletedAt = &t
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}

func (s *SnapshotStore) loadSessions() ([]domain.StudySession, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, ended_at, lessons_touched, notes
		FROM study_sessions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StudySession, 0)
	for rows.Next() {
		var sess domain.StudySession
		var touchedJSON string
		var endedAt sql.NullTime
		err := rows.Scan(&sess.ID, &sess.StartedAt, &endedAt, &touchedJSON, &sess.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(touchedJSON), &sess.LessonsTouched); err != nil {
			return nil, fmt.Errorf("unmarshal lessons_touched: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SnapshotStore) loadAchievements() ([]domain.Achievement, error) {
	rows, err := s.db.Query("SELECT id, unlocked_at FROM achievements ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Achievement, 0)
	for rows.Next() {
		var a domain.Achievement
		if err := rows.Scan(&a.ID, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// nullTime converts a *time.Time to sql.NullTime for storage.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
