package infrastructure

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/yuna-go/internal/domain"
	"go.uber.org/zap"
)

const telegramQueueSize = 64

var errTelegramQueueFull = errors.New("telegram queue full, event dropped")

// telegramSender is the part of *tgbotapi.BotAPI the sink uses
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts download events to a chat and keeps one message per
// unit up to date with a progress bar. Bot API calls happen on the sink's
// own goroutine; Handle only queues.
type TelegramSink struct {
	bot          telegramSender
	chatID       int64
	editInterval time.Duration
	progress     bool
	logger       *zap.Logger
	now          func() time.Time

	// owned by the delivery goroutine
	units map[string]*telegramUnit

	mu     sync.RWMutex
	closed bool
	queue  chan domain.ProgressEvent
	done   chan struct{}
}

type telegramUnit struct {
	messageID int
	lastEdit  time.Time
}

// NewTelegramSink connects to the Bot API with the configured token
func NewTelegramSink(cfg domain.TelegramConfig, logger *zap.Logger) (*TelegramSink, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Telegram bot connected", zap.String("username", bot.Self.UserName))
	return newTelegramSink(bot, cfg, logger), nil
}

func newTelegramSink(bot telegramSender, cfg domain.TelegramConfig, logger *zap.Logger) *TelegramSink {
	s := &TelegramSink{
		bot:          bot,
		chatID:       cfg.ChatID,
		editInterval: cfg.EditInterval,
		progress:     cfg.ProgressEvents,
		logger:       logger,
		now:          time.Now,
		units:        make(map[string]*telegramUnit),
		queue:        make(chan domain.ProgressEvent, telegramQueueSize),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *TelegramSink) Name() string { return "telegram" }

// Handle queues the event for delivery and never waits on the Bot API
func (s *TelegramSink) Handle(event domain.ProgressEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	select {
	case s.queue <- event:
		return nil
	default:
		return errTelegramQueueFull
	}
}

// Close stops accepting events and waits for the queued ones to be sent
func (s *TelegramSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *TelegramSink) run() {
	defer close(s.done)
	for event := range s.queue {
		if err := s.deliver(event); err != nil {
			s.logger.Warn("Telegram delivery failed",
				zap.String("type", string(event.Type)),
				zap.String("entry", event.Key().String()),
				zap.Error(err))
		}
	}
}

// deliver maps an event to a send or an edit
func (s *TelegramSink) deliver(event domain.ProgressEvent) error {
	unitKey := event.Key().String()
	if event.Episode != nil {
		unitKey = fmt.Sprintf("%s#%d", unitKey, *event.Episode)
	}
	label := describeEvent(event)

	switch event.Type {
	case domain.EventDownloadStart:
		msg, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, "⬇️ Downloading "+label))
		if err != nil {
			return err
		}
		s.units[unitKey] = &telegramUnit{messageID: msg.MessageID, lastEdit: s.now()}
		return nil

	case domain.EventDownloadProgress:
		unit, ok := s.units[unitKey]
		if !ok || !s.progress || event.Progress == nil {
			return nil
		}
		if s.now().Sub(unit.lastEdit) < s.editInterval {
			return nil
		}
		unit.lastEdit = s.now()
		text := fmt.Sprintf("⬇️ Downloading %s\n%s", label, progressBar(*event.Progress, 20))
		_, err := s.bot.Send(tgbotapi.NewEditMessageText(s.chatID, unit.messageID, text))
		return err

	case domain.EventDownloadComplete:
		return s.finish(unitKey, "✅ Downloaded "+label)

	case domain.EventDownloadError:
		return s.finish(unitKey, fmt.Sprintf("❌ Failed %s\n%s", label, truncateString(event.Error, 300)))
	}
	return nil
}

// finish edits the unit message if there is one, otherwise sends a new one
func (s *TelegramSink) finish(unitKey, text string) error {
	unit, ok := s.units[unitKey]
	delete(s.units, unitKey)
	if ok {
		_, err := s.bot.Send(tgbotapi.NewEditMessageText(s.chatID, unit.messageID, text))
		return err
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}

// progressBar renders "▓▓▓▓░░░░ 50.0%"
func progressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return strings.Repeat("▓", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %.1f%%", pct)
}
