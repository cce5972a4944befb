package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/store"
	"github.com/SilentStoat/StoatBot/internal/tzindex"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

const chatID = int64(-100500)

var now = time.Date(2026, 1, 15, 19, 30, 0, 0, time.UTC)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	commands string
	sendErrs []error // consumed one per Send
	panics   bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panics {
		panic("boom")
	}
	if len(b.sendErrs) > 0 {
		err := b.sendErrs[0]
		b.sendErrs = b.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	if _, ok := c.(tgbotapi.GetMyCommandsConfig); ok {
		return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(b.commands)}, nil
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("true")}, nil
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}

func newRouter(t *testing.T) (*Router, *fakeBot, store.Repo) {
	t.Helper()
	idx, err := tzindex.Build([]string{
		"America/Bogota", "America/Chicago", "America/Panama", "Asia/Kolkata", "Europe/Berlin", "UTC",
	}, 2026)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	clock := domain.FixedClock(now)
	bot := &fakeBot{}
	r := NewRouter(bot, zap.NewNop(), repo, wizard.New(idx, repo, clock), clock, Options{MaxConcurrent: 4})
	return r, bot, repo
}

var updateSeq int

func command(userID int64, text string) tgbotapi.Update {
	updateSeq++
	cmd, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{
		UpdateID: updateSeq,
		Message: &tgbotapi.Message{
			MessageID: updateSeq,
			From:      &tgbotapi.User{ID: userID, FirstName: "User", LastName: string(rune('A' + userID))},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
		},
	}
}

func reply(userID, targetID int64, text string) tgbotapi.Update {
	u := command(userID, text)
	u.Message.ReplyToMessage = &tgbotapi.Message{
		From: &tgbotapi.User{ID: targetID, FirstName: "Target"},
		Chat: &tgbotapi.Chat{ID: chatID},
	}
	return u
}

func press(userID int64, data string) tgbotapi.Update {
	updateSeq++
	return tgbotapi.Update{
		UpdateID: updateSeq,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: userID, FirstName: "User"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

func buttons(t *testing.T, m tgbotapi.MessageConfig) []string {
	t.Helper()
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("message %q has no inline keyboard", m.Text)
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, *b.CallbackData)
		}
	}
	return out
}

func TestRouter_WizardFunnel(t *testing.T) {
	r, bot, repo := newRouter(t)
	ctx := context.Background()

	r.HandleUpdate(ctx, command(1, "/settz"))
	msgs := bot.messages()
	if len(msgs) != 1 {
		t.Fatalf("want DST prompt, got %d messages", len(msgs))
	}
	if got := buttons(t, msgs[0]); strings.Join(got, ",") != "dst:0|0,dst:0|1" {
		t.Fatalf("dst buttons: %v", got)
	}

	bot.reset()
	r.HandleUpdate(ctx, press(1, "dst:0|0"))
	msgs = bot.messages()
	if len(msgs) != 2 {
		t.Fatalf("want hourly and irregular offset lists, got %d", len(msgs))
	}
	if got := buttons(t, msgs[0]); len(got) != 25 || got[7] != "offset:0|-300" {
		t.Fatalf("offset buttons: %v", got)
	}
	if got := buttons(t, msgs[1]); strings.Join(got, ",") != "offset:1|330" {
		t.Fatalf("irregular buttons: %v", got)
	}

	bot.reset()
	r.HandleUpdate(ctx, press(1, "offset:0|-300"))
	msgs = bot.messages()
	if got := buttons(t, msgs[0]); strings.Join(got, ",") != "zone:0|America/Bogota,zone:0|America/Panama" {
		t.Fatalf("zone buttons: %v", got)
	}

	bot.reset()
	r.HandleUpdate(ctx, press(1, "zone:0|America/Panama"))
	msgs = bot.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "America/Panama") {
		t.Fatalf("confirmation: %+v", msgs)
	}

	p, err := repo.Get(ctx, domain.ProfileKey{ScopeID: chatID, UserID: 1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *p.ResolvedZone != "America/Panama" || *p.UTCOffsetMinutes != -300 || p.DisplayName != "User" {
		t.Fatalf("profile: %+v", p)
	}
}

func TestRouter_MalformedCallbackRestarts(t *testing.T) {
	r, bot, _ := newRouter(t)
	r.HandleUpdate(context.Background(), press(1, "set_interval"))
	msgs := bot.messages()
	if len(msgs) != 1 || buttons(t, msgs[0])[0] != "dst:0|0" {
		t.Fatalf("want DST prompt, got %+v", msgs)
	}
}

func TestRouter_Times(t *testing.T) {
	r, bot, repo := newRouter(t)
	ctx := context.Background()
	_ = repo.Upsert(ctx, domain.ProfileKey{ScopeID: chatID, UserID: 1}, domain.ProfilePatch{DisplayName: domain.Ptr("alice"), UTCOffsetMinutes: domain.Ptr(-300)})
	_ = repo.Upsert(ctx, domain.ProfileKey{ScopeID: chatID, UserID: 2}, domain.ProfilePatch{DisplayName: domain.Ptr("bob"), UTCOffsetMinutes: domain.Ptr(-300)})
	_ = repo.Upsert(ctx, domain.ProfileKey{ScopeID: chatID, UserID: 3}, domain.ProfilePatch{DisplayName: domain.Ptr("carol"), UTCOffsetMinutes: domain.Ptr(60)})

	r.HandleUpdate(ctx, command(9, "/times"))
	msgs := bot.messages()
	if len(msgs) != 1 || msgs[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("messages: %+v", msgs)
	}
	want := "<b>14:30</b> (UTC-5): alice, bob\n<b>20:30</b> (UTC+1): carol"
	if msgs[0].Text != want {
		t.Fatalf("roster:\nwant %q\ngot  %q", want, msgs[0].Text)
	}
}

func TestRouter_LookupsAndPreferences(t *testing.T) {
	r, bot, repo := newRouter(t)
	ctx := context.Background()
	target := domain.ProfileKey{ScopeID: chatID, UserID: 5}

	r.HandleUpdate(ctx, reply(1, 5, "/whenis"))
	if got := bot.messages()[0].Text; got != "Target hasn't set a time zone yet." {
		t.Fatalf("whenis unset: %q", got)
	}

	_ = repo.Upsert(ctx, target, domain.ProfilePatch{UTCOffsetMinutes: domain.Ptr(60), ResolvedZone: domain.Ptr("Europe/Berlin")})
	bot.reset()
	r.HandleUpdate(ctx, reply(1, 5, "/whenis"))
	if got := bot.messages()[0].Text; got != "For Target it is 20:30 (UTC+1, Europe/Berlin)." {
		t.Fatalf("whenis: %q", got)
	}

	bot.reset()
	r.HandleUpdate(ctx, command(5, "/aboutme locale de-ch"))
	r.HandleUpdate(ctx, command(5, "/aboutme color Blue"))
	r.HandleUpdate(ctx, command(5, "/aboutme color plaid"))
	msgs := bot.messages()
	if msgs[0].Text != "Saved locale: de-CH" || msgs[1].Text != "Saved color: blue" || !strings.HasPrefix(msgs[2].Text, "Pick one of") {
		t.Fatalf("aboutme replies: %q / %q / %q", msgs[0].Text, msgs[1].Text, msgs[2].Text)
	}

	bot.reset()
	r.HandleUpdate(ctx, reply(1, 5, "/whois"))
	got := bot.messages()[0].Text
	for _, want := range []string{"Europe/Berlin", "UTC+1", "de-CH", "blue"} {
		if !strings.Contains(got, want) {
			t.Fatalf("whois %q missing %q", got, want)
		}
	}

	bot.reset()
	r.HandleUpdate(ctx, command(1, "/whenis"))
	if got := bot.messages()[0].Text; got != replyNeeded {
		t.Fatalf("whenis without reply: %q", got)
	}
}

func TestRouter_Time(t *testing.T) {
	r, bot, repo := newRouter(t)
	ctx := context.Background()
	_ = repo.Upsert(ctx, domain.ProfileKey{ScopeID: chatID, UserID: 1}, domain.ProfilePatch{UTCOffsetMinutes: domain.Ptr(330)})

	r.HandleUpdate(ctx, command(1, "/time"))
	want := "🕒 2026-01-15 19:30 UTC\nYour time: 01:00 (UTC+5:30)"
	if got := bot.messages()[0].Text; got != want {
		t.Fatalf("time:\nwant %q\ngot  %q", want, got)
	}
}

func TestRouter_Digest(t *testing.T) {
	r, bot, repo := newRouter(t)
	ctx := context.Background()

	r.HandleUpdate(ctx, command(1, "/digest 20:00"))
	if got := bot.messages()[0].Text; !strings.Contains(got, "2026-01-15 20:00") {
		t.Fatalf("digest reply: %q", got)
	}
	due, err := repo.ListDueDigests(ctx, now.Add(time.Hour), 10)
	if err != nil || len(due) != 1 || due[0].AtMinutes != 20*60 {
		t.Fatalf("due: %+v %v", due, err)
	}

	r.HandleUpdate(ctx, command(1, "/digest off"))
	if due, _ := repo.ListDueDigests(ctx, now.Add(time.Hour), 10); len(due) != 0 {
		t.Fatalf("digest still enabled: %+v", due)
	}

	bot.reset()
	r.HandleUpdate(ctx, command(1, "/digest 25:00"))
	if got := bot.messages()[0].Text; got != digestUsage {
		t.Fatalf("bad time reply: %q", got)
	}
}

func TestRouter_PanicIsRecovered(t *testing.T) {
	r, bot, _ := newRouter(t)
	bot.panics = true
	r.HandleUpdate(context.Background(), command(1, "/start"))
}

func TestRouter_DispatchDropsDuplicates(t *testing.T) {
	r, bot, _ := newRouter(t)
	ctx := context.Background()
	upd := command(1, "/start")

	r.Dispatch(ctx, upd)
	r.Dispatch(ctx, upd)
	r.Wait()
	if n := len(bot.messages()); n != 1 {
		t.Fatalf("want one reply, got %d", n)
	}
}

func TestRouter_EnqueueDoesNotBlock(t *testing.T) {
	r, bot, _ := newRouter(t)
	ctx := context.Background()

	// Occupy every slot.
	for range cap(r.sem) {
		r.sem <- struct{}{}
	}

	done := make(chan struct{})
	go func() {
		r.Enqueue(ctx, command(1, "/start"))
		r.Enqueue(ctx, command(2, "/start"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full router")
	}
	if n := len(bot.messages()); n != 0 {
		t.Fatalf("handled before a slot freed: %d", n)
	}

	for range cap(r.sem) {
		<-r.sem
	}
	r.Wait()
	if n := len(bot.messages()); n != 2 {
		t.Fatalf("want two replies, got %d", n)
	}
}

func TestSendWithRetry(t *testing.T) {
	msg := tgbotapi.NewMessage(1, "hi")

	t.Run("client error is final", func(t *testing.T) {
		bot := &fakeBot{sendErrs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request"}}}
		_, err := sendWithRetry(context.Background(), bot, zap.NewNop(), msg)
		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code != 400 {
			t.Fatalf("want 400, got %v", err)
		}
		if len(bot.sendErrs) != 0 || len(bot.sent) != 0 {
			t.Fatalf("unexpected extra attempts")
		}
	})

	t.Run("server error is retried", func(t *testing.T) {
		bot := &fakeBot{sendErrs: []error{&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}}}
		if _, err := sendWithRetry(context.Background(), bot, zap.NewNop(), msg); err != nil {
			t.Fatalf("want success after retry, got %v", err)
		}
		if len(bot.sent) != 1 {
			t.Fatalf("want one delivered message, got %d", len(bot.sent))
		}
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&tgbotapi.Error{Code: 400}, false},
		{&tgbotapi.Error{Code: 403}, false},
		{&tgbotapi.Error{Code: 429}, true},
		{&tgbotapi.Error{Code: 500}, true},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestInstallCommands(t *testing.T) {
	current, _ := json.Marshal(Commands)

	bot := &fakeBot{commands: string(current)}
	installed, err := InstallCommands(bot, zap.NewNop())
	if err != nil || installed {
		t.Fatalf("up to date: installed=%v err=%v", installed, err)
	}
	if len(bot.requests) != 1 {
		t.Fatalf("want only the read, got %d requests", len(bot.requests))
	}

	bot = &fakeBot{commands: `[{"command":"test","description":"Basic guild command"}]`}
	installed, err = InstallCommands(bot, zap.NewNop())
	if err != nil || !installed {
		t.Fatalf("stale: installed=%v err=%v", installed, err)
	}
	set, ok := bot.requests[1].(tgbotapi.SetMyCommandsConfig)
	if !ok || len(set.Commands) != len(Commands) {
		t.Fatalf("set request: %#v", bot.requests[1])
	}
}
