package domain

import "time"

// EventType is the kind of progress notification
type EventType string

const (
	EventDownloadStart    EventType = "download_start"
	EventDownloadProgress EventType = "download_progress"
	EventDownloadComplete EventType = "download_complete"
	EventDownloadError    EventType = "download_error"
)

// ProgressEvent is a transient notification produced during a sync
type ProgressEvent struct {
	Type      EventType `json:"type"`
	Kind      MediaKind `json:"kind"`
	Name      string    `json:"name"`
	Episode   *int      `json:"episode,omitempty"`
	Progress  *float64  `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProgressEvent creates an event for a task
func NewProgressEvent(eventType EventType, key EntryKey, episode *int) ProgressEvent {
	return ProgressEvent{
		Type:      eventType,
		Kind:      key.Kind,
		Name:      key.Name,
		Episode:   episode,
		Timestamp: time.Now(),
	}
}

// WithProgress sets the percentage
func (e ProgressEvent) WithProgress(pct float64) ProgressEvent {
	e.Progress = &pct
	return e
}

// WithError sets the error message
func (e ProgressEvent) WithError(err error) ProgressEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Key returns the entry key the event refers to
func (e ProgressEvent) Key() EntryKey {
	return EntryKey{Kind: e.Kind, Name: e.Name}
}

// IsTerminal reports whether the event closes a unit
func (e ProgressEvent) IsTerminal() bool {
	return e.Type == EventDownloadComplete || e.Type == EventDownloadError
}

// EventSink receives progress events from the notifier
type EventSink interface {
	Name() string
	Handle(event ProgressEvent) error
}

// EventPublisher is what the orchestrator publishes to
type EventPublisher interface {
	Publish(event ProgressEvent)
}
