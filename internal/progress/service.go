package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pointerquest/engine/internal/achievement"
	"github.com/pointerquest/engine/internal/config"
	"github.com/pointerquest/engine/internal/domain"
	"github.com/pointerquest/engine/internal/stats"
)

// Service is the facade in front of the progress engine. Every mutation
// runs the same pipeline: store mutation, achievement evaluation against
// the post-mutation state, appending fresh unlocks, event notification,
// and an asynchronous persistence request. Reads delegate to the store
// and the statistics calculator and never mutate anything.
type Service struct {
	store      *Store
	flusher    *Flusher
	calculator *stats.Calculator
	dispatcher *domain.EventDispatcher
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// UnlockedAchievement joins a static achievement definition with its
// unlock record.
type UnlockedAchievement struct {
	achievement.Definition
	UnlockedAt time.Time `json:"unlockedAt"`
}

// NewService wires the engine together and loads persisted state. A
// missing snapshot means a first run; a corrupt or incompatible one is
// logged and set aside so startup never blocks on storage health.
func NewService(cfg *config.Config, snapshots SnapshotStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	store := NewStore(cfg.Progress.PassThreshold)

	snap, err := snapshots.Load()
	switch {
	case err == nil:
		if verr := snap.Validate(); verr != nil {
			logger.Warn("ignoring persisted snapshot", "error", verr)
		} else {
			store.Hydrate(snap)
		}
	case errors.Is(err, domain.ErrNotFound):
		// First run, nothing persisted yet.
	default:
		logger.Warn("loading persisted snapshot failed, starting fresh", "error", err)
	}

	s := &Service{
		store:      store,
		calculator: stats.NewCalculator(cfg.Curriculum, cfg.TotalLessons(), cfg.Progress.StreakGrace),
		dispatcher: domain.NewEventDispatcher(),
		logger:     logger,
	}
	s.flusher = NewFlusher(snapshots, store, logger)
	return s
}

// Events returns the dispatcher carrying lifecycle and
// achievement-unlocked notifications. Subscribe before mutating.
func (s *Service) Events() *domain.EventDispatcher {
	return s.dispatcher
}

// ----------------------------------------------------------------------------
// Mutations
// ----------------------------------------------------------------------------

// InitializeProfile creates the profile for this installation.
func (s *Service) InitializeProfile(name, email string) (*domain.StudentProfile, error) {
	profile, err := s.store.InitializeProfile(name, email)
	if err != nil {
		return nil, err
	}

	s.afterMutation(domain.NewProfileInitializedEvent(profile.ID, profile.Name))
	return profile, nil
}

// UpdateProfile merges partial fields into the existing profile.
func (s *Service) UpdateProfile(update ProfileUpdate) error {
	if err := s.store.UpdateProfile(update); err != nil {
		return err
	}

	s.afterMutation()
	return nil
}

// StartSession opens a new study session. An already active session is
// implicitly closed first and reported through a session.ended event.
func (s *Service) StartSession() (*domain.StudySession, error) {
	started, closed, err := s.store.StartSession()
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, 2)
	priorID := ""
	if closed != nil {
		priorID = closed.ID
		events = append(events, domain.NewSessionEndedEvent(closed.ID, closed.Duration(), len(closed.LessonsTouched)))
	}
	events = append(events, domain.NewSessionStartedEvent(started.ID, priorID))

	s.afterMutation(events...)
	return started, nil
}

// EndSession closes the active session. Returns (nil, nil) when no
// session is active.
func (s *Service) EndSession(notes string) (*domain.StudySession, error) {
	ended, err := s.store.EndSession(notes)
	if err != nil {
		return nil, err
	}
	if ended == nil {
		return nil, nil
	}

	s.afterMutation(domain.NewSessionEndedEvent(ended.ID, ended.Duration(), len(ended.LessonsTouched)))
	return ended, nil
}

// RecordLessonProgress folds one attempt into the lesson's record and
// returns the updated record.
func (s *Service) RecordLessonProgress(req RecordRequest) (*domain.LessonProgress, error) {
	result, err := s.store.RecordLessonProgress(req)
	if err != nil {
		return nil, err
	}

	events := []domain.Event{
		domain.NewLessonRecordedEvent(req.LessonID, result.Record.LastScore, result.Record.Attempts),
	}
	if result.FirstCompletion {
		events = append(events, domain.NewLessonCompletedEvent(req.LessonID, result.Record.LastScore))
	}

	s.afterMutation(events...)
	return result.Record, nil
}

// ClearAllProgress resets all recorded state, preserving profile
// identity.
func (s *Service) ClearAllProgress() error {
	if err := s.store.ClearAllProgress(); err != nil {
		return err
	}

	var events []domain.Event
	if profile, err := s.store.Profile(); err == nil {
		events = append(events, domain.NewProgressClearedEvent(profile.ID))
	}

	s.afterMutation(events...)
	return nil
}

// ImportProgress validates the snapshot and adopts it wholesale,
// replacing current state. Scores are clamped into range rather than
// rejected, matching RecordLessonProgress. Fails with
// domain.ErrIncompatibleVersion for snapshots from a newer schema and
// domain.ErrMalformedSnapshot for structural problems; current state is
// untouched on failure.
func (s *Service) ImportProgress(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot is nil", domain.ErrMalformedSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	clean := snap.Clone()
	sanitizeSnapshot(clean)
	s.store.Replace(clean)

	profileID := ""
	if clean.Profile != nil {
		profileID = clean.Profile.ID
	}

	s.afterMutation(domain.NewProgressImportedEvent(profileID, clean.SchemaVersion, len(clean.Progress), len(clean.Sessions)))
	return nil
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// GetProfile returns the current profile.
func (s *Service) GetProfile() (*domain.StudentProfile, error) {
	return s.store.Profile()
}

// GetSessions returns all recorded sessions in start order.
func (s *Service) GetSessions() ([]domain.StudySession, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}
	return s.store.Sessions(), nil
}

// GetLessonProgress returns one lesson's record.
func (s *Service) GetLessonProgress(lessonID int) (*domain.LessonProgress, error) {
	return s.store.LessonProgress(lessonID)
}

// GetAllProgress returns every lesson record, ordered by lesson id.
func (s *Service) GetAllProgress() ([]domain.LessonProgress, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}
	return s.store.AllProgress(), nil
}

// GetProgressStats returns the aggregate progress overview.
func (s *Service) GetProgressStats() (stats.ProgressStats, error) {
	if !s.store.Initialized() {
		return stats.ProgressStats{}, domain.ErrNotInitialized
	}
	return s.calculator.Overview(s.store.Snapshot()), nil
}

// GetTopicProgress returns per-topic aggregates in curriculum order.
func (s *Service) GetTopicProgress() ([]stats.TopicProgress, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}
	return s.calculator.TopicBreakdown(s.store.Snapshot()), nil
}

// GetRecentActivity returns the trailing daily activity window.
func (s *Service) GetRecentActivity(days int) ([]stats.DailyActivity, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}
	return s.calculator.RecentActivity(s.store.Snapshot(), days), nil
}

// GetAchievements returns unlock records joined with their static
// definitions, in unlock order. Records whose rule no longer exists in
// the table stay visible under their bare id.
func (s *Service) GetAchievements() ([]UnlockedAchievement, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}

	records := s.store.Achievements()
	out := make([]UnlockedAchievement, 0, len(records))
	for _, rec := range records {
		def, ok := achievement.DefinitionByID(rec.ID)
		if !ok {
			def = achievement.Definition{ID: rec.ID, Title: rec.ID}
		}
		out = append(out, UnlockedAchievement{Definition: def, UnlockedAt: rec.UnlockedAt})
	}
	return out, nil
}

// ExportProgress renders the full current state as a version-tagged
// snapshot.
func (s *Service) ExportProgress() (*domain.Snapshot, error) {
	if !s.store.Initialized() {
		return nil, domain.ErrNotInitialized
	}
	return s.store.Snapshot(), nil
}

// ----------------------------------------------------------------------------
// Persistence control
// ----------------------------------------------------------------------------

// Flush persists the current state synchronously and surfaces the
// error, unlike the swallowed background path.
func (s *Service) Flush() error {
	return s.flusher.FlushNow()
}

// Dirty reports whether state has changed since the last successful
// persistence.
func (s *Service) Dirty() bool {
	return s.store.Dirty()
}

// Close stops the background flusher and performs a final synchronous
// flush if state is still dirty. The service must not be used after
// Close. Safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.flusher.Close()
		if s.store.Dirty() {
			if err := s.flusher.FlushNow(); err != nil {
				s.logger.Warn("final progress flush failed", "error", err)
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// ----------------------------------------------------------------------------
// Pipeline internals
// ----------------------------------------------------------------------------

// afterMutation runs the shared post-mutation pipeline: achievement
// evaluation with unlock append, event notification, and a
// fire-and-forget flush request. Unlock events are published after the
// mutation's own events.
func (s *Service) afterMutation(events ...domain.Event) {
	events = append(events, s.evaluateAchievements()...)
	s.dispatcher.PublishAll(events)
	s.flusher.Request()
}

// evaluateAchievements runs the rule set against current state, appends
// fresh unlocks to the profile, and returns one event per unlock.
func (s *Service) evaluateAchievements() []domain.Event {
	snap := s.store.Snapshot()
	if snap.Profile == nil {
		return nil
	}

	facts := achievement.Facts{
		Snapshot: snap,
		Stats:    s.calculator.Overview(snap),
		Topics:   s.calculator.TopicBreakdown(snap),
	}

	newly := achievement.Evaluate(facts, achievement.UnlockedSet(snap.Profile.Achievements))
	if len(newly) == 0 {
		return nil
	}

	now := time.Now()
	ids := make([]string, len(newly))
	events := make([]domain.Event, len(newly))
	for i, def := range newly {
		ids[i] = def.ID
		events[i] = domain.NewAchievementUnlockedEvent(def.ID, def.Title, def.Description, def.Icon, def.XP, now)
	}

	s.store.appendAchievements(ids, now)
	return events
}

// sanitizeSnapshot clamps imported scores into [0,100], mirroring the
// clamp-not-reject policy of RecordLessonProgress.
func sanitizeSnapshot(snap *domain.Snapshot) {
	for i := range snap.Progress {
		lp := &snap.Progress[i]
		lp.BestScore = min(max(lp.BestScore, 0), 100)
		lp.LastScore = min(max(lp.LastScore, 0), 100)
		for j := range lp.Exercises {
			lp.Exercises[j].Score = min(max(lp.Exercises[j].Score, 0), 100)
		}
	}
}
