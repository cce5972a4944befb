package telegram

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

func TestCallbackRoundTrip(t *testing.T) {
	id := wizard.ListID{Step: wizard.AwaitingZone, Index: 2}
	data, err := EncodeCallback(id, "America/Argentina/ComodRivadavia")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data != "zone:2|America/Argentina/ComodRivadavia" {
		t.Fatalf("data: %q", data)
	}
	gotID, value, err := DecodeCallback(data)
	if err != nil || gotID != id || value != "America/Argentina/ComodRivadavia" {
		t.Fatalf("decode: %v %q %v", gotID, value, err)
	}

	if _, err := EncodeCallback(id, strings.Repeat("x", 60)); !errors.Is(err, ErrCallbackTooLong) {
		t.Fatalf("want ErrCallbackTooLong, got %v", err)
	}
	for _, bad := range []string{"interval:30m", "zone:x|UTC", "|UTC"} {
		if _, _, err := DecodeCallback(bad); !errors.Is(err, wizard.ErrMalformedSelection) {
			t.Errorf("DecodeCallback(%q): got %v", bad, err)
		}
	}
}

func offsetPrompt() wizard.Prompt {
	var opts []wizard.Option
	for _, o := range domain.CurrentOptions(now) {
		opts = append(opts, wizard.Option{Label: o.Label, Value: strconv.Itoa(o.ValueMinutes)})
	}
	return wizard.Prompt{
		Text:   "What time is it where you are?",
		Notice: "No time zones match.",
		Lists: []wizard.ChoiceList{
			{ID: wizard.ListID{Step: wizard.AwaitingOffset}, Title: "Whole-hour offsets", Options: opts},
			{ID: wizard.ListID{Step: wizard.AwaitingOffset, Index: 1}, Title: "Other offsets", Options: []wizard.Option{{Label: "01:00 +5:30", Value: "330"}}},
		},
	}
}

func TestRenderPrompt(t *testing.T) {
	msgs, err := RenderPrompt(chatID, offsetPrompt())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want one message per list, got %d", len(msgs))
	}
	if want := "⚠️ No time zones match.\n\nWhat time is it where you are?\n\nWhole-hour offsets"; msgs[0].Text != want {
		t.Fatalf("first text: %q", msgs[0].Text)
	}
	if msgs[1].Text != "Other offsets" {
		t.Fatalf("second text: %q", msgs[1].Text)
	}

	kb := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if len(kb.InlineKeyboard) != 5 {
		t.Fatalf("want 5 rows of 5, got %d rows", len(kb.InlineKeyboard))
	}
	for _, row := range kb.InlineKeyboard {
		if len(row) != 5 {
			t.Fatalf("row width %d", len(row))
		}
		for _, b := range row {
			if len(*b.CallbackData) > MaxCallbackData {
				t.Fatalf("callback too long: %q", *b.CallbackData)
			}
		}
	}
}

func TestRenderPrompt_TextOnly(t *testing.T) {
	msgs, err := RenderPrompt(chatID, wizard.Prompt{Text: "Time zone set to UTC."})
	if err != nil || len(msgs) != 1 || msgs[0].Text != "Time zone set to UTC." || msgs[0].ReplyMarkup != nil {
		t.Fatalf("render: %+v %v", msgs, err)
	}
}

func TestRenderPrompt_RejectsOversize(t *testing.T) {
	p := wizard.Prompt{Lists: make([]wizard.ChoiceList, 6)}
	if _, err := RenderPrompt(chatID, p); !errors.Is(err, wizard.ErrPromptTooLarge) {
		t.Fatalf("want ErrPromptTooLarge, got %v", err)
	}
}
