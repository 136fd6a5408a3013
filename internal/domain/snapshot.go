package domain

import "fmt"

// SchemaVersion is the current snapshot schema version. Imports from a
// newer version are rejected; the version tag travels with every export.
const SchemaVersion = 1

// Snapshot is the full serializable representation of engine state, used
// for persistence and import/export. Field names match the JSON export
// format of the original web application.
type Snapshot struct {
	SchemaVersion int              `json:"schemaVersion"`
	Profile       *StudentProfile  `json:"profile"`
	Progress      []LessonProgress `json:"progress"`
	Sessions      []StudySession   `json:"sessions"`
}

// Validate checks the snapshot for version compatibility and structural
// soundness. Version problems surface as ErrIncompatibleVersion, shape
// problems as ErrMalformedSnapshot; both are wrapped with detail.
func (s *Snapshot) Validate() error {
	if s.SchemaVersion <= 0 {
		return fmt.Errorf("%w: missing or invalid schemaVersion", ErrMalformedSnapshot)
	}
	if s.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: snapshot version %d, supported up to %d",
			ErrIncompatibleVersion, s.SchemaVersion, SchemaVersion)
	}
	if s.Profile == nil {
		return fmt.Errorf("%w: missing profile", ErrMalformedSnapshot)
	}
	if s.Profile.ID == "" {
		return fmt.Errorf("%w: profile missing id", ErrMalformedSnapshot)
	}
	if s.Profile.Name == "" {
		return fmt.Errorf("%w: profile missing name", ErrMalformedSnapshot)
	}
	if s.Profile.CreatedAt.IsZero() {
		return fmt.Errorf("%w: profile missing createdAt", ErrMalformedSnapshot)
	}

	seen := make(map[string]bool, len(s.Profile.Achievements))
	for _, a := range s.Profile.Achievements {
		if a.ID == "" {
			return fmt.Errorf("%w: achievement missing id", ErrMalformedSnapshot)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate achievement %q", ErrMalformedSnapshot, a.ID)
		}
		seen[a.ID] = true
		if a.UnlockedAt.IsZero() {
			return fmt.Errorf("%w: achievement %q missing unlockedAt", ErrMalformedSnapshot, a.ID)
		}
	}

	lessons := make(map[int]bool, len(s.Progress))
	for _, lp := range s.Progress {
		if lp.LessonID <= 0 {
			return fmt.Errorf("%w: progress record with invalid lessonId %d", ErrMalformedSnapshot, lp.LessonID)
		}
		if lessons[lp.LessonID] {
			return fmt.Errorf("%w: duplicate progress record for lesson %d", ErrMalformedSnapshot, lp.LessonID)
		}
		lessons[lp.LessonID] = true
		if lp.Attempts < 1 {
			return fmt.Errorf("%w: lesson %d has no attempts", ErrMalformedSnapshot, lp.LessonID)
		}
	}

	active := 0
	ids := make(map[string]bool, len(s.Sessions))
	for _, sess := range s.Sessions {
		if sess.ID == "" {
			return fmt.Errorf("%w: session missing id", ErrMalformedSnapshot)
		}
		if ids[sess.ID] {
			return fmt.Errorf("%w: duplicate session %q", ErrMalformedSnapshot, sess.ID)
		}
		ids[sess.ID] = true
		if sess.StartedAt.IsZero() {
			return fmt.Errorf("%w: session %q missing startedAt", ErrMalformedSnapshot, sess.ID)
		}
		if sess.EndedAt == nil {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%w: %d simultaneously active sessions", ErrMalformedSnapshot, active)
	}

	return nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := &Snapshot{
		SchemaVersion: s.SchemaVersion,
		Profile:       s.Profile.Clone(),
		Progress:      make([]LessonProgress, 0, len(s.Progress)),
		Sessions:      make([]StudySession, 0, len(s.Sessions)),
	}
	for _, lp := range s.Progress {
		cp.Progress = append(cp.Progress, *lp.Clone())
	}
	for _, sess := range s.Sessions {
		cp.Sessions = append(cp.Sessions, *sess.Clone())
	}
	return cp
}
