package domain

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event
	AggregateID() string
	// AggregateType returns the type of aggregate that produced this event
	AggregateType() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateRef  string    `json:"aggregate_id"`
	AggregateName string    `json:"aggregate_type"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, aggregateType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		AggregateRef:  aggregateID,
		AggregateName: aggregateType,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateRef }
func (e BaseEvent) AggregateType() string { return e.AggregateName }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing. It is the
// in-process replacement for the browser event bus the UI used to listen
// on: hosts subscribe by event type (or to all events) and receive each
// event synchronously on the publishing goroutine.
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Call type-specific handlers
	if handlers, ok := d.handlers[event.EventType()]; ok {
		for _, h := range handlers {
			h(event)
		}
	}

	// Call all-event handlers
	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches multiple events
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}

// -----------------------------------------------------------------------------
// Profile Events
// -----------------------------------------------------------------------------

// ProfileInitializedEvent is published when the profile is created
type ProfileInitializedEvent struct {
	BaseEvent
	Name string `json:"name"`
}

// NewProfileInitializedEvent creates a new profile initialized event
func NewProfileInitializedEvent(profileID, name string) ProfileInitializedEvent {
	return ProfileInitializedEvent{
		BaseEvent: NewBaseEvent("profile.initialized", "StudentProfile", profileID),
		Name:      name,
	}
}

// ProgressImportedEvent is published when a snapshot import replaces state
type ProgressImportedEvent struct {
	BaseEvent
	SchemaVersion int `json:"schema_version"`
	Lessons       int `json:"lessons"`
	Sessions      int `json:"sessions"`
}

// NewProgressImportedEvent creates a new progress imported event
func NewProgressImportedEvent(profileID string, schemaVersion, lessons, sessions int) ProgressImportedEvent {
	return ProgressImportedEvent{
		BaseEvent:     NewBaseEvent("progress.imported", "StudentProfile", profileID),
		SchemaVersion: schemaVersion,
		Lessons:       lessons,
		Sessions:      sessions,
	}
}

// ProgressClearedEvent is published when all progress is reset
type ProgressClearedEvent struct {
	BaseEvent
}

// NewProgressClearedEvent creates a new progress cleared event
func NewProgressClearedEvent(profileID string) ProgressClearedEvent {
	return ProgressClearedEvent{
		BaseEvent: NewBaseEvent("progress.cleared", "StudentProfile", profileID),
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is published when a study session begins
type SessionStartedEvent struct {
	BaseEvent
	// PriorSessionID is set when starting this session implicitly
	// closed a previously active one.
	PriorSessionID string `json:"prior_session_id,omitempty"`
}

// NewSessionStartedEvent creates a new session started event
func NewSessionStartedEvent(sessionID, priorSessionID string) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent:      NewBaseEvent("session.started", "StudySession", sessionID),
		PriorSessionID: priorSessionID,
	}
}

// SessionEndedEvent is published when a study session ends
type SessionEndedEvent struct {
	BaseEvent
	Duration       time.Duration `json:"duration"`
	LessonsTouched int           `json:"lessons_touched"`
}

// NewSessionEndedEvent creates a new session ended event
func NewSessionEndedEvent(sessionID string, duration time.Duration, lessonsTouched int) SessionEndedEvent {
	return SessionEndedEvent{
		BaseEvent:      NewBaseEvent("session.ended", "StudySession", sessionID),
		Duration:       duration,
		LessonsTouched: lessonsTouched,
	}
}

// -----------------------------------------------------------------------------
// Lesson Events
// -----------------------------------------------------------------------------

// LessonRecordedEvent is published for every recorded lesson attempt
type LessonRecordedEvent struct {
	BaseEvent
	LessonID int     `json:"lesson_id"`
	Score    float64 `json:"score"`
	Attempts int     `json:"attempts"`
}

// NewLessonRecordedEvent creates a new lesson recorded event
func NewLessonRecordedEvent(lessonID int, score float64, attempts int) LessonRecordedEvent {
	return LessonRecordedEvent{
		BaseEvent: NewBaseEvent("lesson.recorded", "LessonProgress", strconv.Itoa(lessonID)),
		LessonID:  lessonID,
		Score:     score,
		Attempts:  attempts,
	}
}

// LessonCompletedEvent is published when a lesson first crosses the pass
// threshold
type LessonCompletedEvent struct {
	BaseEvent
	LessonID int     `json:"lesson_id"`
	Score    float64 `json:"score"`
}

// NewLessonCompletedEvent creates a new lesson completed event
func NewLessonCompletedEvent(lessonID int, score float64) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent("lesson.completed", "LessonProgress", strconv.Itoa(lessonID)),
		LessonID:  lessonID,
		Score:     score,
	}
}

// -----------------------------------------------------------------------------
// Achievement Events
// -----------------------------------------------------------------------------

// AchievementUnlockedEvent is published once per newly unlocked
// achievement. It carries the full definition so subscribers can render
// the notification without a catalog lookup.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string    `json:"achievement_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	XP            int       `json:"xp"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// NewAchievementUnlockedEvent creates a new achievement unlocked event
func NewAchievementUnlockedEvent(achievementID, title, description, icon string, xp int, unlockedAt time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent("achievement.unlocked", "Achievement", achievementID),
		AchievementID: achievementID,
		Title:         title,
		Description:   description,
		Icon:          icon,
		XP:            xp,
		UnlockedAt:    unlockedAt,
	}
}
