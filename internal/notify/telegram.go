package notify

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/crewmuster/crewmuster/internal/models"
)

var chatIDPattern = regexp.MustCompile(`^\d+$`)

// Telegram delivers messages through a Telegram bot.
type Telegram struct {
	bot       *tele.Bot
	connected bool
}

// NewTelegram builds the channel from stored settings. Disconnected settings
// yield a channel that reports Connected() == false without touching the
// Telegram API.
func NewTelegram(cfg models.TelegramSettings) (*Telegram, error) {
	if !cfg.Connected || cfg.BotToken == "" {
		return &Telegram{}, nil
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.BotToken, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, connected: true}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Connected() bool { return t.connected }

func (t *Telegram) Address(member models.StaffMember) string { return member.TelegramChatID }

// ValidateAddress accepts numeric Telegram chat identifiers.
func (t *Telegram) ValidateAddress(address string) error {
	if !chatIDPattern.MatchString(address) {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, models.ErrValidation)
	}
	return nil
}

func (t *Telegram) Send(_ context.Context, address string, msg Message) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, models.ErrValidation)
	}
	if _, err = t.bot.Send(tele.ChatID(chatID), msg.Text); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
