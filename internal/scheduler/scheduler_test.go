package scheduler

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockTarget struct {
	mu       sync.Mutex
	dirty    bool
	flushErr error
	flushes  int
}

func (m *mockTarget) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

func (m *mockTarget) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	if m.flushErr != nil {
		return m.flushErr
	}
	m.dirty = false
	return nil
}

func (m *mockTarget) flushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

func TestScheduler_FlushesWhenDirty(t *testing.T) {
	target := &mockTarget{dirty: true}
	s := New(target, 20*time.Millisecond, testLogger())
	s.Start()
	defer s.Stop()

	waitUntil(t, func() bool { return target.flushCount() > 0 }, "autosave never flushed")
	if target.Dirty() {
		t.Error("Dirty() = true after flush")
	}
}

func TestScheduler_SkipsCleanTarget(t *testing.T) {
	target := &mockTarget{}
	s := New(target, 20*time.Millisecond, testLogger())
	s.Start()
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	if n := target.flushCount(); n != 0 {
		t.Errorf("flush count = %d; want 0 for clean target", n)
	}
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	target := &mockTarget{dirty: true, flushErr: errors.New("disk full")}
	s := New(target, 20*time.Millisecond, testLogger())
	s.Start()
	defer s.Stop()

	// A failed flush must not stop the loop.
	waitUntil(t, func() bool { return target.flushCount() >= 2 }, "autosave stopped after failure")
}

func TestScheduler_StopHaltsLoop(t *testing.T) {
	target := &mockTarget{dirty: true}
	s := New(target, 20*time.Millisecond, testLogger())
	s.Start()

	waitUntil(t, func() bool { return target.flushCount() > 0 }, "autosave never ran")
	s.Stop()

	target.mu.Lock()
	target.dirty = true
	target.flushes = 0
	target.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if n := target.flushCount(); n != 0 {
		t.Errorf("flush count = %d after Stop(); want 0", n)
	}
}
