// Package telegram delivers caregiver messages to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pillbox/internal/services/notify"
)

type Config struct {
	Token  string
	ChatID int64

	// Offline skips the getMe call on construction. Used by tests.
	Offline bool
}

// Sender implements notify.Channel. It is send-only; no update polling.
type Sender struct {
	bot    *tele.Bot
	chatID int64
}

func New(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b, chatID: cfg.ChatID}, nil
}

func (s *Sender) Name() string { return "telegram" }

func (s *Sender) Send(ctx context.Context, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tele.ChatID(s.chatID), n.Message)
	return err
}
