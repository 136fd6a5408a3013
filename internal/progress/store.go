// Package progress implements the canonical in-memory progress state and
// the facade orchestrating mutations, achievement evaluation, event
// notification, and asynchronous persistence.
package progress

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pointerquest/engine/internal/domain"
)

// Store is the single source of truth for one learner's state. Every
// mutation is a total function of (current state, input): it validates,
// applies, and bumps the state version, with no side effects beyond the
// in-memory snapshot. Persistence and achievement evaluation are the
// facade's concern.
//
// All methods are safe for concurrent use; mutations serialize behind
// one mutex because they read-modify-write shared fields.
type Store struct {
	mu sync.RWMutex

	profile  *domain.StudentProfile
	progress map[int]*domain.LessonProgress
	sessions []domain.StudySession

	passThreshold float64

	// version counts mutations; savedVersion tracks the last version
	// successfully persisted. The store is dirty while they differ.
	version      uint64
	savedVersion uint64
}

// NewStore creates an empty store. passThreshold is the score at which
// an attempt counts as the lesson's completion.
func NewStore(passThreshold float64) *Store {
	return &Store{
		progress:      make(map[int]*domain.LessonProgress),
		passThreshold: passThreshold,
	}
}

// ----------------------------------------------------------------------------
// State adoption
// ----------------------------------------------------------------------------

// Hydrate adopts previously persisted state. The store starts clean: no
// flush is owed until the next mutation.
func (s *Store) Hydrate(snap *domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adopt(snap)
	s.savedVersion = s.version
}

// Replace swaps in a new state wholesale and marks the store dirty.
// Callers must validate the snapshot first.
func (s *Store) Replace(snap *domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adopt(snap)
	s.version++
}

func (s *Store) adopt(snap *domain.Snapshot) {
	clone := snap.Clone()
	s.profile = clone.Profile
	s.progress = make(map[int]*domain.LessonProgress, len(clone.Progress))
	for i := range clone.Progress {
		lp := clone.Progress[i]
		s.progress[lp.LessonID] = &lp
	}
	s.sessions = clone.Sessions
}

// ----------------------------------------------------------------------------
// Mutations
// ----------------------------------------------------------------------------

// InitializeProfile creates the profile for this installation. An
// existing profile that already carries progress, sessions, or
// achievements makes this fail with ErrAlreadyInitialized; an empty
// leftover profile is replaced.
func (s *Store) InitializeProfile(name, email string) (*domain.StudentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return nil, fmt.Errorf("%w: profile name is required", domain.ErrInvalidInput)
	}
	if s.profile != nil && !s.emptyLocked() {
		return nil, fmt.Errorf("%w: profile %q already has recorded progress", domain.ErrAlreadyInitialized, s.profile.Name)
	}

	s.profile = domain.NewStudentProfile(name, email)
	s.progress = make(map[int]*domain.LessonProgress)
	s.sessions = nil
	s.version++

	return s.profile.Clone(), nil
}

// ProfileUpdate carries the fields of a partial profile update. Nil
// pointers mean "leave unchanged"; a non-nil Preferences map replaces
// the stored blob wholesale.
type ProfileUpdate struct {
	Name        *string
	Email       *string
	Preferences map[string]any
}

// UpdateProfile merges the provided fields into the existing profile.
func (s *Store) UpdateProfile(update ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return domain.ErrNotInitialized
	}
	if update.Name != nil && *update.Name == "" {
		return fmt.Errorf("%w: profile name cannot be empty", domain.ErrInvalidInput)
	}

	if update.Name != nil {
		s.profile.Name = *update.Name
	}
	if update.Email != nil {
		s.profile.Email = *update.Email
	}
	if update.Preferences != nil {
		prefs := make(map[string]any, len(update.Preferences))
		for k, v := range update.Preferences {
			prefs[k] = v
		}
		s.profile.Preferences = prefs
	}

	s.version++
	return nil
}

// StartSession opens a new study session. An active session is
// implicitly closed first; its final state is returned as closed so the
// caller can report it.
func (s *Store) StartSession() (started, closed *domain.StudySession, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil, nil, domain.ErrNotInitialized
	}

	if i := s.activeIndexLocked(); i >= 0 {
		s.sessions[i].End("")
		closed = s.sessions[i].Clone()
	}

	sess := domain.NewStudySession()
	s.sessions = append(s.sessions, *sess)
	s.version++

	return s.sessions[len(s.sessions)-1].Clone(), closed, nil
}

// EndSession closes the active session and attaches notes. Returns
// (nil, nil) when no session is active; that is a no-op, not an error.
func (s *Store) EndSession(notes string) (*domain.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil, domain.ErrNotInitialized
	}

	i := s.activeIndexLocked()
	if i < 0 {
		return nil, nil
	}

	s.sessions[i].End(notes)
	s.version++
	return s.sessions[i].Clone(), nil
}

// RecordRequest carries one lesson attempt.
type RecordRequest struct {
	LessonID         int
	Score            float64
	TimeSpentSeconds int
	Exercises        []domain.ExerciseResult
	Notes            string
}

// RecordResult reports what a recorded attempt changed.
type RecordResult struct {
	// Record is the post-mutation state of the lesson's record.
	Record *domain.LessonProgress
	// FirstCompletion is true when this attempt crossed the pass
	// threshold for the first time on this lesson.
	FirstCompletion bool
}

// RecordLessonProgress folds one attempt into the lesson's record,
// creating it on first contact. Scores outside [0,100] are clamped, not
// rejected; negative time is ignored. A passing score on a lesson not
// yet completed stamps completedAt and adds the lesson to the profile's
// completed set. The attempt is also registered with the active session
// if one exists.
func (s *Store) RecordLessonProgress(req RecordRequest) (*RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil, domain.ErrNotInitialized
	}
	if req.LessonID <= 0 {
		return nil, fmt.Errorf("%w: lesson id must be positive, got %d", domain.ErrInvalidInput, req.LessonID)
	}

	score := min(max(req.Score, 0), 100)

	lp, ok := s.progress[req.LessonID]
	if !ok {
		lp = domain.NewLessonProgress(req.LessonID)
		s.progress[req.LessonID] = lp
	}
	lp.ApplyAttempt(score, max(req.TimeSpentSeconds, 0), req.Exercises, req.Notes)

	first := false
	if score >= s.passThreshold && lp.CompletedAt == nil {
		lp.MarkCompleted(time.Now())
		s.profile.MarkLessonCompleted(req.LessonID)
		first = true
	}

	if i := s.activeIndexLocked(); i >= 0 {
		s.sessions[i].Touch(req.LessonID)
	}

	s.version++
	return &RecordResult{Record: lp.Clone(), FirstCompletion: first}, nil
}

// ClearAllProgress resets progress records, sessions, achievements, and
// preferences. Profile identity (id, name, email, createdAt) survives.
func (s *Store) ClearAllProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return domain.ErrNotInitialized
	}

	fresh := domain.NewStudentProfile(s.profile.Name, s.profile.Email)
	fresh.ID = s.profile.ID
	fresh.CreatedAt = s.profile.CreatedAt

	s.profile = fresh
	s.progress = make(map[int]*domain.LessonProgress)
	s.sessions = nil
	s.version++
	return nil
}

// appendAchievements records unlocks on the profile. Deliberately not
// part of the public mutation surface: only the facade appends, right
// after rule evaluation, inside the same logical transaction.
func (s *Store) appendAchievements(ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return
	}
	for _, id := range ids {
		s.profile.UnlockAchievement(id, at)
	}
	s.version++
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// Initialized reports whether a profile exists.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil
}

// Profile returns a copy of the current profile.
func (s *Store) Profile() (*domain.StudentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil, domain.ErrNotInitialized
	}
	return s.profile.Clone(), nil
}

// LessonProgress returns a copy of one lesson's record.
func (s *Store) LessonProgress(lessonID int) (*domain.LessonProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil, domain.ErrNotInitialized
	}
	lp, ok := s.progress[lessonID]
	if !ok {
		return nil, fmt.Errorf("%w: no progress for lesson %d", domain.ErrNotFound, lessonID)
	}
	return lp.Clone(), nil
}

// AllProgress returns copies of every lesson record, ordered by lesson id.
func (s *Store) AllProgress() []domain.LessonProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allProgressLocked()
}

// ActiveSession returns a copy of the active session, or nil.
func (s *Store) ActiveSession() *domain.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.activeIndexLocked(); i >= 0 {
		return s.sessions[i].Clone()
	}
	return nil
}

// Sessions returns copies of all sessions in start order.
func (s *Store) Sessions() []domain.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StudySession, len(s.sessions))
	for i := range s.sessions {
		out[i] = *s.sessions[i].Clone()
	}
	return out
}

// Achievements returns a copy of the profile's unlock records in unlock
// order. Empty when no profile exists.
func (s *Store) Achievements() []domain.Achievement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil
	}
	out := make([]domain.Achievement, len(s.profile.Achievements))
	copy(out, s.profile.Achievements)
	return out
}

// Snapshot renders the full current state as an independent deep copy
// tagged with the supported schema version. Safe to hand to another
// goroutine.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Dirty reports whether the state has changed since the last successful
// persistence.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.savedVersion
}

// snapshotVersioned returns the snapshot together with the version it
// captures, for the flusher to confirm back via markSaved.
func (s *Store) snapshotVersioned() (*domain.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), s.version
}

// markSaved records that the given state version reached storage.
// Versions never regress, so a stale confirmation is ignored.
func (s *Store) markSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version > s.savedVersion {
		s.savedVersion = version
	}
}

// ----------------------------------------------------------------------------
// Internal helpers (callers hold the lock)
// ----------------------------------------------------------------------------

func (s *Store) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		SchemaVersion: domain.SchemaVersion,
		Progress:      s.allProgressLocked(),
		Sessions:      make([]domain.StudySession, len(s.sessions)),
	}
	if s.profile != nil {
		snap.Profile = s.profile.Clone()
	}
	for i := range s.sessions {
		snap.Sessions[i] = *s.sessions[i].Clone()
	}
	return snap
}

func (s *Store) allProgressLocked() []domain.LessonProgress {
	out := make([]domain.LessonProgress, 0, len(s.progress))
	for _, lp := range s.progress {
		out = append(out, *lp.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out
}

func (s *Store) activeIndexLocked() int {
	for i := range s.sessions {
		if s.sessions[i].EndedAt == nil {
			return i
		}
	}
	return -1
}

func (s *Store) emptyLocked() bool {
	return len(s.progress) == 0 &&
		len(s.sessions) == 0 &&
		len(s.profile.CompletedLessons) == 0 &&
		len(s.profile.Achievements) == 0
}
