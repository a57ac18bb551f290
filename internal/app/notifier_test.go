package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

type funcSink struct {
	name   string
	handle func(domain.ProgressEvent) error
}

func (s *funcSink) Name() string { return s.name }
func (s *funcSink) Handle(event domain.ProgressEvent) error { return s.handle(event) }

func TestNotifier_IsolatesFailingSinks(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewNotifier(logger.NewSingleLoggerAdapter(zap.New(core)))

	var delivered []string
	n.Register(&funcSink{name: "panics", handle: func(domain.ProgressEvent) error {
		panic("sink exploded")
	}})
	n.Register(&funcSink{name: "errors", handle: func(domain.ProgressEvent) error {
		return errors.New("chat not found")
	}})
	n.Register(&funcSink{name: "works", handle: func(e domain.ProgressEvent) error {
		delivered = append(delivered, e.Name)
		return nil
	}})

	event := domain.NewProgressEvent(domain.EventDownloadStart, domain.EntryKey{Kind: domain.KindAnime, Name: "Frieren"}, intPtr(3))
	assert.NotPanics(t, func() { n.Publish(event) })

	assert.Equal(t, []string{"Frieren"}, delivered)
	assert.Equal(t, []string{"panics", "errors", "works"}, n.Sinks())

	failures := logs.FilterMessage("Event sink failed").All()
	assert.Len(t, failures, 2)
	assert.Equal(t, "panics", failures[0].ContextMap()["sink"])
	assert.Equal(t, "errors", failures[1].ContextMap()["sink"])
}

func TestLogSink_WritesEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(logger.NewSingleLoggerAdapter(zap.New(core)))
	key := domain.EntryKey{Kind: domain.KindSeries, Name: "The Office"}

	assert.NoError(t, sink.Handle(domain.NewProgressEvent(domain.EventDownloadProgress, key, intPtr(4)).WithProgress(42.5)))
	assert.NoError(t, sink.Handle(domain.NewProgressEvent(domain.EventDownloadError, key, intPtr(4)).WithError(errors.New("boom"))))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "download_progress", entries[0].Message)
		assert.Equal(t, 42.5, entries[0].ContextMap()["progress"])
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	}
}
