package tgnotify

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ConfigFunc is called each time a push is attempted to get the latest
// notification settings (chat id may be changed by the operator at runtime).
type ConfigFunc func() (chatID int64, siteTitle string, enabled bool)

// Service sends operator notifications through the Telegram bot.
type Service struct {
	bot      *tgbotapi.BotAPI
	configFn ConfigFunc

	mu         sync.Mutex
	lastPushAt map[string]time.Time
	throttleD  time.Duration
}

// New creates the notifier. bot may be nil when the token is not
// configured; pushes then become no-ops that report an error.
func New(bot *tgbotapi.BotAPI, configFn ConfigFunc) *Service {
	return &Service{
		bot:        bot,
		configFn:   configFn,
		lastPushAt: make(map[string]time.Time),
		throttleD:  10 * time.Minute,
	}
}

// Push sends a notification immediately (no throttle).
func (s *Service) Push(title, body string) error {
	if s.bot == nil {
		return fmt.Errorf("telegram bot not configured")
	}
	chatID, siteTitle, enabled := s.configFn()
	if !enabled || chatID == 0 {
		return fmt.Errorf("telegram notifications disabled")
	}

	text := fmt.Sprintf("[%s] %s\n%s", siteTitle, title, body)
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.bot.Send(msg)
	return err
}

// ThrottlePush sends a notification for a repeating event at most once
// per throttle window per key.
func (s *Service) ThrottlePush(key, title, body string) {
	s.mu.Lock()
	last, ok := s.lastPushAt[key]
	if ok && time.Since(last) < s.throttleD {
		s.mu.Unlock()
		return
	}
	s.lastPushAt[key] = time.Now()
	s.mu.Unlock()

	_ = s.Push(title, body)
}
