package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/wizard"
)

// Sink renders wizard prompts as messages with inline keyboards, one message
// per choice list.
type Sink struct {
	bot Bot
	log *zap.Logger
}

// NewSink creates a sink sending through bot.
func NewSink(bot Bot, log *zap.Logger) *Sink {
	return &Sink{bot: bot, log: log}
}

// Send renders p and delivers it to chatID.
func (s *Sink) Send(ctx context.Context, chatID int64, p wizard.Prompt) error {
	msgs, err := RenderPrompt(chatID, p)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if _, err := sendWithRetry(ctx, s.bot, s.log, m); err != nil {
			return err
		}
	}
	return nil
}

// RenderPrompt turns a prompt into Telegram messages. The notice and text go
// with the first list; each further list gets its own message titled by the
// list. Limits are checked before anything is built.
func RenderPrompt(chatID int64, p wizard.Prompt) ([]tgbotapi.MessageConfig, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var header []string
	if p.Notice != "" {
		header = append(header, "⚠️ "+p.Notice)
	}
	if p.Text != "" {
		header = append(header, p.Text)
	}
	if len(p.Lists) == 0 {
		return []tgbotapi.MessageConfig{tgbotapi.NewMessage(chatID, strings.Join(header, "\n\n"))}, nil
	}

	out := make([]tgbotapi.MessageConfig, 0, len(p.Lists))
	for i, l := range p.Lists {
		kb, err := keyboard(l)
		if err != nil {
			return nil, err
		}
		text := l.Title
		if i == 0 {
			text = strings.Join(header, "\n\n")
			if len(p.Lists) > 1 && l.Title != "" {
				text += "\n\n" + l.Title
			}
		}
		if text == "" {
			text = "Choose:"
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = kb
		out = append(out, msg)
	}
	return out, nil
}

// keyboard lays the options out in rows sized to the longest label.
func keyboard(l wizard.ChoiceList) (tgbotapi.InlineKeyboardMarkup, error) {
	widest := 0
	for _, o := range l.Options {
		widest = max(widest, utf8.RuneCountInString(o.Label))
	}
	cols := 1
	switch {
	case widest <= 10:
		cols = 5
	case widest <= 20:
		cols = 2
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, chunk := range wizard.Chunk(l.Options, cols) {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(chunk))
		for _, o := range chunk {
			data, err := EncodeCallback(l.ID, o.Value)
			if err != nil {
				return tgbotapi.InlineKeyboardMarkup{}, fmt.Errorf("list %s: %w", l.ID, err)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}
