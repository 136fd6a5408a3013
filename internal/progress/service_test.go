package progress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pointerquest/engine/internal/config"
	"github.com/pointerquest/engine/internal/domain"
)

// mockSnapshotStore implements SnapshotStore in memory.
type mockSnapshotStore struct {
	mu       sync.Mutex
	snap     *domain.Snapshot
	saveErr  error
	attempts int
}

func (m *mockSnapshotStore) Save(snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = snap.Clone()
	return nil
}

func (m *mockSnapshotStore) Load() (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap == nil {
		return nil, domain.ErrNotFound
	}
	return m.snap.Clone(), nil
}

func (m *mockSnapshotStore) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap != nil
}

func (m *mockSnapshotStore) saved() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap == nil {
		return nil
	}
	return m.snap.Clone()
}

func (m *mockSnapshotStore) saveAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *mockSnapshotStore) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestService(t *testing.T) (*Service, *mockSnapshotStore) {
	t.Helper()

	snapshots := &mockSnapshotStore{}
	svc := NewService(config.DefaultConfig(), snapshots, testLogger())
	t.Cleanup(func() { svc.Close() })
	return svc, snapshots
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestService_InitializeProfile(t *testing.T) {
	svc, snapshots := setupTestService(t)

	var initEvents []domain.ProfileInitializedEvent
	svc.Events().Subscribe("profile.initialized", func(e domain.Event) {
		initEvents = append(initEvents, e.(domain.ProfileInitializedEvent))
	})

	profile, err := svc.InitializeProfile("Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if profile.Name != "Ada" {
		t.Errorf("Name = %q, want Ada", profile.Name)
	}

	if len(initEvents) != 1 {
		t.Fatalf("profile.initialized events = %d, want 1", len(initEvents))
	}
	if initEvents[0].Name != "Ada" {
		t.Errorf("event Name = %q, want Ada", initEvents[0].Name)
	}

	waitUntil(t, func() bool {
		saved := snapshots.saved()
		return saved != nil && saved.Profile != nil && saved.Profile.Name == "Ada"
	}, "profile never reached the snapshot store")
}

func TestService_PassThresholdScenario(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}

	var completed []domain.LessonCompletedEvent
	var unlocked []domain.AchievementUnlockedEvent
	svc.Events().Subscribe("lesson.completed", func(e domain.Event) {
		completed = append(completed, e.(domain.LessonCompletedEvent))
	})
	svc.Events().Subscribe("achievement.unlocked", func(e domain.Event) {
		unlocked = append(unlocked, e.(domain.AchievementUnlockedEvent))
	})

	// Below threshold: no completion, no unlocks.
	record, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 45})
	if err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	if record.BestScore != 45 {
		t.Errorf("BestScore = %v, want 45", record.BestScore)
	}
	if len(completed) != 0 || len(unlocked) != 0 {
		t.Fatalf("events after failed attempt: completed %d unlocked %d, want none", len(completed), len(unlocked))
	}

	// Crossing the threshold completes the lesson and unlocks the
	// first-completion achievement.
	record, err = svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 75})
	if err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	if record.BestScore != 75 || record.Attempts != 2 {
		t.Errorf("record = best %v attempts %d, want 75/2", record.BestScore, record.Attempts)
	}

	if len(completed) != 1 || completed[0].LessonID != 1 {
		t.Fatalf("lesson.completed events = %v, want one for lesson 1", completed)
	}
	if len(unlocked) != 1 || unlocked[0].AchievementID != "first_pointer" {
		t.Fatalf("achievement.unlocked events = %v, want first_pointer", unlocked)
	}
	if unlocked[0].Title == "" || unlocked[0].Icon == "" {
		t.Error("unlock event missing definition fields")
	}

	// The same state unlocks nothing twice.
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 80}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	if len(unlocked) != 1 {
		t.Errorf("achievement.unlocked events = %d after repeat, want still 1", len(unlocked))
	}

	achievements, err := svc.GetAchievements()
	if err != nil {
		t.Fatalf("GetAchievements() error = %v", err)
	}
	if len(achievements) != 1 || achievements[0].ID != "first_pointer" {
		t.Fatalf("GetAchievements() = %v, want [first_pointer]", achievements)
	}
	if achievements[0].XP == 0 || achievements[0].UnlockedAt.IsZero() {
		t.Error("joined achievement missing XP or unlock time")
	}
}

func TestService_EventOrderWithinMutation(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}

	var order []string
	svc.Events().SubscribeAll(func(e domain.Event) {
		order = append(order, e.EventType())
	})

	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 75}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	want := []string{"lesson.recorded", "lesson.completed", "achievement.unlocked"}
	if len(order) != len(want) {
		t.Fatalf("event order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("event order = %v, want %v", order, want)
		}
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}

	var startedEvents []domain.SessionStartedEvent
	var endedEvents []domain.SessionEndedEvent
	svc.Events().Subscribe("session.started", func(e domain.Event) {
		startedEvents = append(startedEvents, e.(domain.SessionStartedEvent))
	})
	svc.Events().Subscribe("session.ended", func(e domain.Event) {
		endedEvents = append(endedEvents, e.(domain.SessionEndedEvent))
	})

	first, err := svc.StartSession()
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	second, err := svc.StartSession()
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	if len(startedEvents) != 2 {
		t.Fatalf("session.started events = %d, want 2", len(startedEvents))
	}
	if startedEvents[1].PriorSessionID != first.ID {
		t.Errorf("PriorSessionID = %q, want %q", startedEvents[1].PriorSessionID, first.ID)
	}
	if len(endedEvents) != 1 {
		t.Fatalf("session.ended events = %d after implicit close, want 1", len(endedEvents))
	}

	ended, err := svc.EndSession("wrapped up")
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if ended == nil || ended.ID != second.ID {
		t.Fatalf("EndSession() = %v, want second session", ended)
	}
	if ended.Notes != "wrapped up" {
		t.Errorf("Notes = %q, want wrapped up", ended.Notes)
	}

	// No active session: no-op, no event.
	ended, err = svc.EndSession("")
	if err != nil || ended != nil {
		t.Errorf("EndSession() = (%v, %v), want (nil, nil)", ended, err)
	}
	if len(endedEvents) != 2 {
		t.Errorf("session.ended events = %d, want 2", len(endedEvents))
	}

	sessions, err := svc.GetSessions()
	if err != nil {
		t.Fatalf("GetSessions() error = %v", err)
	}
	for _, sess := range sessions {
		if sess.EndedAt == nil {
			t.Errorf("session %s still active", sess.ID)
		}
	}
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", "ada@example.com"); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 85, TimeSpentSeconds: 600}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 2, Score: 40}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	exported, err := svc.ExportProgress()
	if err != nil {
		t.Fatalf("ExportProgress() error = %v", err)
	}
	if exported.SchemaVersion != domain.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", exported.SchemaVersion, domain.SchemaVersion)
	}

	if err := svc.ClearAllProgress(); err != nil {
		t.Fatalf("ClearAllProgress() error = %v", err)
	}
	if all, _ := svc.GetAllProgress(); len(all) != 0 {
		t.Fatal("progress survived the clear")
	}

	if err := svc.ImportProgress(exported); err != nil {
		t.Fatalf("ImportProgress() error = %v", err)
	}

	profile, err := svc.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if profile.Name != "Ada" || profile.Email != "ada@example.com" {
		t.Errorf("profile = %q/%q, want Ada/ada@example.com", profile.Name, profile.Email)
	}
	if len(profile.CompletedLessons) != 1 || profile.CompletedLessons[0] != 1 {
		t.Errorf("CompletedLessons = %v, want [1]", profile.CompletedLessons)
	}

	all, err := svc.GetAllProgress()
	if err != nil {
		t.Fatalf("GetAllProgress() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("GetAllProgress() len = %d, want 2", len(all))
	}
	if all[0].BestScore != 85 || all[0].TimeSpentSeconds != 600 {
		t.Errorf("restored record = %+v, want best 85 time 600", all[0])
	}

	achievements, err := svc.GetAchievements()
	if err != nil {
		t.Fatalf("GetAchievements() error = %v", err)
	}
	if len(achievements) == 0 {
		t.Error("achievements lost in round trip")
	}
}

func TestService_ImportNewerVersionRejected(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 85}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	newer, err := svc.ExportProgress()
	if err != nil {
		t.Fatalf("ExportProgress() error = %v", err)
	}
	newer.SchemaVersion = domain.SchemaVersion + 1

	if err := svc.ImportProgress(newer); !errors.Is(err, domain.ErrIncompatibleVersion) {
		t.Fatalf("ImportProgress() error = %v, want ErrIncompatibleVersion", err)
	}

	// Current state must be untouched by the failed import.
	all, err := svc.GetAllProgress()
	if err != nil {
		t.Fatalf("GetAllProgress() error = %v", err)
	}
	if len(all) != 1 || all[0].BestScore != 85 {
		t.Errorf("state changed by rejected import: %+v", all)
	}
}

func TestService_ImportMalformed(t *testing.T) {
	svc, _ := setupTestService(t)

	if err := svc.ImportProgress(nil); !errors.Is(err, domain.ErrMalformedSnapshot) {
		t.Errorf("ImportProgress(nil) error = %v, want ErrMalformedSnapshot", err)
	}

	missingProfile := &domain.Snapshot{SchemaVersion: domain.SchemaVersion}
	if err := svc.ImportProgress(missingProfile); !errors.Is(err, domain.ErrMalformedSnapshot) {
		t.Errorf("ImportProgress(no profile) error = %v, want ErrMalformedSnapshot", err)
	}
}

func TestService_ImportClampsScores(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}

	snap, err := svc.ExportProgress()
	if err != nil {
		t.Fatalf("ExportProgress() error = %v", err)
	}
	snap.Progress = []domain.LessonProgress{
		{LessonID: 1, BestScore: 300, LastScore: -50, Attempts: 1, UpdatedAt: time.Now()},
	}

	if err := svc.ImportProgress(snap); err != nil {
		t.Fatalf("ImportProgress() error = %v", err)
	}

	lp, err := svc.GetLessonProgress(1)
	if err != nil {
		t.Fatalf("GetLessonProgress() error = %v", err)
	}
	if lp.BestScore != 100 || lp.LastScore != 0 {
		t.Errorf("scores = %v/%v, want clamped 100/0", lp.BestScore, lp.LastScore)
	}
}

func TestService_ReadsRequireProfile(t *testing.T) {
	svc, _ := setupTestService(t)

	if _, err := svc.GetProfile(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("GetProfile() error = %v, want ErrNotInitialized", err)
	}
	if _, err := svc.GetProgressStats(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("GetProgressStats() error = %v, want ErrNotInitialized", err)
	}
	if _, err := svc.GetTopicProgress(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("GetTopicProgress() error = %v, want ErrNotInitialized", err)
	}
	if _, err := svc.ExportProgress(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("ExportProgress() error = %v, want ErrNotInitialized", err)
	}
	if err := svc.ClearAllProgress(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("ClearAllProgress() error = %v, want ErrNotInitialized", err)
	}
}

func TestService_StatsThroughFacade(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 80, TimeSpentSeconds: 300}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	stats, err := svc.GetProgressStats()
	if err != nil {
		t.Fatalf("GetProgressStats() error = %v", err)
	}
	if stats.CompletedLessons != 1 {
		t.Errorf("CompletedLessons = %d, want 1", stats.CompletedLessons)
	}
	if stats.CompletionRate < 0 || stats.CompletionRate > 1 {
		t.Errorf("CompletionRate = %v, want within [0,1]", stats.CompletionRate)
	}
	if stats.TotalTimeSpentSeconds != 300 {
		t.Errorf("TotalTimeSpentSeconds = %d, want 300", stats.TotalTimeSpentSeconds)
	}

	topics, err := svc.GetTopicProgress()
	if err != nil {
		t.Fatalf("GetTopicProgress() error = %v", err)
	}
	if len(topics) == 0 {
		t.Fatal("GetTopicProgress() empty")
	}
	if topics[0].Completed != 1 {
		t.Errorf("first topic Completed = %d, want 1", topics[0].Completed)
	}

	activity, err := svc.GetRecentActivity(0)
	if err != nil {
		t.Fatalf("GetRecentActivity() error = %v", err)
	}
	if len(activity) != 7 {
		t.Errorf("GetRecentActivity(0) len = %d, want default 7", len(activity))
	}
	if activity[len(activity)-1].LessonsCompleted != 1 {
		t.Errorf("today's LessonsCompleted = %d, want 1", activity[len(activity)-1].LessonsCompleted)
	}
}

func TestService_PersistenceFailureSwallowed(t *testing.T) {
	svc, snapshots := setupTestService(t)
	snapshots.failWith(fmt.Errorf("disk full"))

	// Mutations succeed even while every flush fails.
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 80}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	waitUntil(t, func() bool { return snapshots.saveAttempts() > 0 }, "no flush was attempted")
	if snapshots.saved() != nil {
		t.Fatal("snapshot saved despite failing backend")
	}
	if !svc.Dirty() {
		t.Error("service clean while nothing was persisted")
	}

	// In-memory state stays authoritative.
	profile, err := svc.GetProfile()
	if err != nil || profile.Name != "Ada" {
		t.Fatalf("GetProfile() = (%v, %v), want Ada", profile, err)
	}

	// Once the backend recovers, the next mutation's flush catches up.
	snapshots.failWith(nil)
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 2, Score: 70}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	waitUntil(t, func() bool {
		saved := snapshots.saved()
		return saved != nil && len(saved.Progress) == 2
	}, "flush never recovered after backend came back")
}

func TestService_CloseFlushesDirtyState(t *testing.T) {
	snapshots := &mockSnapshotStore{}
	svc := NewService(config.DefaultConfig(), snapshots, testLogger())

	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	saved := snapshots.saved()
	if saved == nil || saved.Profile == nil || saved.Profile.Name != "Ada" {
		t.Fatal("Close() did not persist the dirty state")
	}

	// Close is idempotent.
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestService_LoadsPersistedState(t *testing.T) {
	snapshots := &mockSnapshotStore{}

	first := NewService(config.DefaultConfig(), snapshots, testLogger())
	if _, err := first.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := first.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 85}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := NewService(config.DefaultConfig(), snapshots, testLogger())
	t.Cleanup(func() { second.Close() })

	profile, err := second.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile() after restart error = %v", err)
	}
	if profile.Name != "Ada" {
		t.Errorf("Name = %q, want Ada", profile.Name)
	}
	if second.Dirty() {
		t.Error("freshly loaded service is dirty")
	}

	lp, err := second.GetLessonProgress(1)
	if err != nil || lp.BestScore != 85 {
		t.Errorf("GetLessonProgress(1) = (%+v, %v), want best 85", lp, err)
	}
}

func TestService_CorruptSnapshotStartsFresh(t *testing.T) {
	snapshots := &mockSnapshotStore{}
	snapshots.snap = &domain.Snapshot{SchemaVersion: domain.SchemaVersion} // no profile

	svc := NewService(config.DefaultConfig(), snapshots, testLogger())
	t.Cleanup(func() { svc.Close() })

	if _, err := svc.GetProfile(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("GetProfile() error = %v, want fresh uninitialized state", err)
	}
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Errorf("InitializeProfile() after corrupt snapshot error = %v", err)
	}
}

func TestService_ClearAllProgress(t *testing.T) {
	svc, _ := setupTestService(t)
	if _, err := svc.InitializeProfile("Ada", ""); err != nil {
		t.Fatalf("InitializeProfile() error = %v", err)
	}
	if _, err := svc.RecordLessonProgress(RecordRequest{LessonID: 1, Score: 80}); err != nil {
		t.Fatalf("RecordLessonProgress() error = %v", err)
	}

	var cleared []domain.ProgressClearedEvent
	svc.Events().Subscribe("progress.cleared", func(e domain.Event) {
		cleared = append(cleared, e.(domain.ProgressClearedEvent))
	})

	if err := svc.ClearAllProgress(); err != nil {
		t.Fatalf("ClearAllProgress() error = %v", err)
	}
	if len(cleared) != 1 {
		t.Errorf("progress.cleared events = %d, want 1", len(cleared))
	}

	profile, err := svc.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if profile.Name != "Ada" {
		t.Errorf("Name = %q, want preserved", profile.Name)
	}
	if len(profile.Achievements) != 0 {
		t.Error("achievements survived the clear")
	}
}
