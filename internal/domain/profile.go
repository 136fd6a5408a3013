package domain

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Student Profile
// -----------------------------------------------------------------------------

// StudentProfile is the single learner identity and its aggregate state.
// Exactly one profile exists per installation; it is created on first use.
type StudentProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// CompletedLessons holds the ids of all passed lessons, sorted
	// ascending, no duplicates.
	CompletedLessons []int `json:"completedLessons"`

	// Achievements holds unlock records in unlock order, no duplicate ids.
	Achievements []Achievement `json:"achievements"`

	// Preferences is an opaque configuration blob owned by the UI layer.
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Achievement is the persisted unlock record for one achievement id.
// The full definition (title, description, reward) lives in the static
// rule table and is never persisted.
type Achievement struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// NewStudentProfile creates a fresh profile with empty progress state.
func NewStudentProfile(name, email string) *StudentProfile {
	return &StudentProfile{
		ID:               uuid.New().String(),
		Name:             name,
		Email:            email,
		CreatedAt:        time.Now(),
		CompletedLessons: []int{},
		Achievements:     []Achievement{},
		Preferences:      map[string]any{},
	}
}

// HasCompleted reports whether the lesson id is in the completed set.
func (p *StudentProfile) HasCompleted(lessonID int) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// MarkLessonCompleted inserts the lesson id into the completed set,
// keeping it sorted. Inserting an already-present id is a no-op.
func (p *StudentProfile) MarkLessonCompleted(lessonID int) {
	i := 0
	for i < len(p.CompletedLessons) && p.CompletedLessons[i] < lessonID {
		i++
	}
	if i < len(p.CompletedLessons) && p.CompletedLessons[i] == lessonID {
		return
	}
	p.CompletedLessons = append(p.CompletedLessons, 0)
	copy(p.CompletedLessons[i+1:], p.CompletedLessons[i:])
	p.CompletedLessons[i] = lessonID
}

// HasAchievement reports whether the achievement id is already unlocked.
func (p *StudentProfile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// UnlockAchievement appends an unlock record. Unlocking is monotonic:
// an id that is already unlocked is left untouched.
func (p *StudentProfile) UnlockAchievement(id string, at time.Time) {
	if p.HasAchievement(id) {
		return
	}
	p.Achievements = append(p.Achievements, Achievement{ID: id, UnlockedAt: at})
}

// Clone returns a deep copy safe to hand out as a read-only projection.
func (p *StudentProfile) Clone() *StudentProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.CompletedLessons = append([]int{}, p.CompletedLessons...)
	cp.Achievements = append([]Achievement{}, p.Achievements...)
	if p.Preferences != nil {
		cp.Preferences = make(map[string]any, len(p.Preferences))
		for k, v := range p.Preferences {
			cp.Preferences[k] = v
		}
	}
	return &cp
}

// -----------------------------------------------------------------------------
// Lesson Progress
// -----------------------------------------------------------------------------

// LessonProgress is the per-lesson attempt record. One record exists per
// attempted lesson; it is updated in place and removed only by a full reset.
type LessonProgress struct {
	LessonID         int              `json:"lessonId"`
	BestScore        float64          `json:"bestScore"` // running maximum
	LastScore        float64          `json:"lastScore"` // most recent attempt
	TimeSpentSeconds int              `json:"timeSpentSeconds"`
	Attempts         int              `json:"attempts"`
	Exercises        []ExerciseResult `json:"exercises,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ExerciseResult is one exercise-level outcome within a lesson attempt.
type ExerciseResult struct {
	ExerciseID string  `json:"exerciseId"`
	Score      float64 `json:"score"`
	Passed     bool    `json:"passed"`
}

// NewLessonProgress creates the record for a lesson's first attempt.
func NewLessonProgress(lessonID int) *LessonProgress {
	return &LessonProgress{
		LessonID:  lessonID,
		UpdatedAt: time.Now(),
	}
}

// ApplyAttempt folds one attempt into the record: lastScore reflects this
// attempt, bestScore is the running maximum, time accumulates, attempts
// increment, exercises append, notes are overwritten only when provided.
func (lp *LessonProgress) ApplyAttempt(score float64, timeSpentSeconds int, exercises []ExerciseResult, notes string) {
	lp.LastScore = score
	lp.BestScore = max(lp.BestScore, score)
	if timeSpentSeconds > 0 {
		lp.TimeSpentSeconds += timeSpentSeconds
	}
	lp.Attempts++
	lp.Exercises = append(lp.Exercises, exercises...)
	if notes != "" {
		lp.Notes = notes
	}
	lp.UpdatedAt = time.Now()
}

// MarkCompleted stamps the first completion. Later completions keep the
// original timestamp.
func (lp *LessonProgress) MarkCompleted(at time.Time) {
	if lp.CompletedAt != nil {
		return
	}
	t := at
	lp.CompletedAt = &t
}

// Completed reports whether the lesson has ever passed.
func (lp *LessonProgress) Completed() bool {
	return lp.CompletedAt != nil
}

// Clone returns a deep copy of the record.
func (lp *LessonProgress) Clone() *LessonProgress {
	if lp == nil {
		return nil
	}
	cp := *lp
	if lp.Exercises != nil {
		cp.Exercises = append([]ExerciseResult{}, lp.Exercises...)
	}
	if lp.CompletedAt != nil {
		t := *lp.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// -----------------------------------------------------------------------------
// Study Session
// -----------------------------------------------------------------------------

// StudySession is one bounded interval of engagement. At most one session
// is active at any time; starting a new one implicitly ends the previous.
type StudySession struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	LessonsTouched []int      `json:"lessonsTouched"`
	Notes          string     `json:"notes,omitempty"`
}

// NewStudySession creates a new active session.
func NewStudySession() *StudySession {
	return &StudySession{
		ID:             uuid.New().String(),
		StartedAt:      time.Now(),
		LessonsTouched: []int{},
	}
}

// Active reports whether the session is still open.
func (s *StudySession) Active() bool {
	return s.EndedAt == nil
}

// End closes the session. Ending an already-closed session is a no-op.
func (s *StudySession) End(notes string) {
	if s.EndedAt != nil {
		return
	}
	now := time.Now()
	s.EndedAt = &now
	if notes != "" {
		s.Notes = notes
	}
}

// Touch registers a lesson id into the session's touched set.
func (s *StudySession) Touch(lessonID int) {
	for _, id := range s.LessonsTouched {
		if id == lessonID {
			return
		}
	}
	s.LessonsTouched = append(s.LessonsTouched, lessonID)
}

// Duration returns the session length, measured up to now while active.
func (s *StudySession) Duration() time.Duration {
	if s.EndedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Clone returns a deep copy of the session.
func (s *StudySession) Clone() *StudySession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.LessonsTouched = append([]int{}, s.LessonsTouched...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
