package domain

import (
	"fmt"
	"time"
)

// TaskOutcome represents the state of a single download unit
type TaskOutcome string

const (
	OutcomePending TaskOutcome = "pending"
	OutcomeSuccess TaskOutcome = "success"
	OutcomeFailed  TaskOutcome = "failed"
)

// DownloadTask is one episode or one film being fetched for an entry.
// It lives only for the duration of a sync.
type DownloadTask struct {
	Entry       EntryKey    `json:"entry"`
	Episode     *int        `json:"episode,omitempty"`
	StreamURL   string      `json:"stream_url,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Tool        string      `json:"tool,omitempty"`
	Outcome     TaskOutcome `json:"outcome"`
	Error       string      `json:"error,omitempty"`
	Bytes       int64       `json:"bytes,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

// NewDownloadTask creates a pending task for one unit of an entry
func NewDownloadTask(key EntryKey, episode *int) *DownloadTask {
	return &DownloadTask{
		Entry:     key,
		Episode:   episode,
		Outcome:   OutcomePending,
		StartedAt: time.Now(),
	}
}

// MarkSuccess records a successful download
func (t *DownloadTask) MarkSuccess(result *DownloadResult) {
	now := time.Now()
	t.Outcome = OutcomeSuccess
	t.FinishedAt = &now
	t.Error = ""
	if result != nil {
		t.Tool = result.Tool
		t.Bytes = result.Bytes
		if result.Path != "" {
			t.Destination = result.Path
		}
	}
}

// MarkFailed records a failed download
func (t *DownloadTask) MarkFailed(err error) {
	now := time.Now()
	t.Outcome = OutcomeFailed
	t.FinishedAt = &now
	if err != nil {
		t.Error = err.Error()
	}
}

// Succeeded reports whether the task finished successfully
func (t *DownloadTask) Succeeded() bool {
	return t.Outcome == OutcomeSuccess
}

// Label is a short human description, e.g. "Frieren episode 3"
func (t *DownloadTask) Label() string {
	if t.Episode == nil {
		return t.Entry.Name
	}
	return fmt.Sprintf("%s episode %d", t.Entry.Name, *t.Episode)
}
