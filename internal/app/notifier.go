package app

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

// Notifier fans progress events out to every registered sink. A failing or
// panicking sink never affects the others or the caller.
type Notifier struct {
	mu    sync.RWMutex
	sinks []domain.EventSink
	log   *logger.LoggerAdapter
}

// NewNotifier creates a notifier with an initial set of sinks
func NewNotifier(log *logger.LoggerAdapter, sinks ...domain.EventSink) *Notifier {
	return &Notifier{
		sinks: sinks,
		log:   log,
	}
}

// Register adds a sink
func (n *Notifier) Register(sink domain.EventSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, sink)
}

// Sinks returns the names of the registered sinks
func (n *Notifier) Sinks() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.sinks))
	for _, s := range n.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish delivers the event to each sink in registration order
func (n *Notifier) Publish(event domain.ProgressEvent) {
	n.mu.RLock()
	sinks := append([]domain.EventSink(nil), n.sinks...)
	n.mu.RUnlock()

	for _, sink := range sinks {
		if err := n.deliver(sink, event); err != nil {
			n.log.General().Warn("Event sink failed",
				zap.String("sink", sink.Name()),
				zap.String("event", string(event.Type)),
				zap.String("entry", event.Key().String()),
				zap.Error(err))
		}
	}
}

func (n *Notifier) deliver(sink domain.EventSink, event domain.ProgressEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Handle(event)
}

// LogSink writes every event to the events log category
type LogSink struct {
	log *logger.LoggerAdapter
}

// NewLogSink creates a log sink
func NewLogSink(log *logger.LoggerAdapter) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(event domain.ProgressEvent) error {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("name", event.Name),
	}
	if event.Episode != nil {
		fields = append(fields, zap.Int("episode", *event.Episode))
	}
	if event.Progress != nil {
		fields = append(fields, zap.Float64("progress", *event.Progress))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}

	if event.Type == domain.EventDownloadError {
		s.log.Events().Warn(string(event.Type), fields...)
	} else {
		s.log.Events().Info(string(event.Type), fields...)
	}
	return nil
}
