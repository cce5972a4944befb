package telegram

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/store"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

// Options tunes update handling.
type Options struct {
	MaxConcurrent int           // updates handled at once
	DedupeTTL     time.Duration // how long update ids are remembered
}

// Router wires Telegram updates to handlers. It keeps no conversation state;
// the wizard reads everything it needs from the store.
type Router struct {
	bot    Bot
	log    *zap.Logger
	repo   store.Repo
	wizard *wizard.Wizard
	clock  domain.Clock
	sink   *Sink
	dedupe *Dedupe

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Bot, log *zap.Logger, repo store.Repo, wiz *wizard.Wizard, clock domain.Clock, opts Options) *Router {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 10 * time.Minute
	}
	return &Router{
		bot:    bot,
		log:    log,
		repo:   repo,
		wizard: wiz,
		clock:  clock,
		sink:   NewSink(bot, log),
		dedupe: NewDedupe(opts.DedupeTTL),
		sem:    make(chan struct{}, opts.MaxConcurrent),
	}
}

// Dispatch handles upd on its own goroutine, blocking while MaxConcurrent
// updates are in flight. Duplicate update ids are dropped.
func (r *Router) Dispatch(ctx context.Context, upd tgbotapi.Update) {
	if r.duplicate(upd) {
		return
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()
		r.HandleUpdate(ctx, upd)
	}()
}

// Enqueue is Dispatch without backpressure on the caller: it returns at once
// and the update waits for a free slot on its own goroutine. Webhook handlers
// use it so a busy router never holds the HTTP response.
func (r *Router) Enqueue(ctx context.Context, upd tgbotapi.Update) {
	if r.duplicate(upd) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-r.sem }()
		r.HandleUpdate(ctx, upd)
	}()
}

func (r *Router) duplicate(upd tgbotapi.Update) bool {
	if r.dedupe.Seen(upd.UpdateID) {
		r.log.Debug("duplicate update dropped", zap.Int("update_id", upd.UpdateID))
		return true
	}
	return false
}

// Wait blocks until every dispatched update has been handled.
func (r *Router) Wait() { r.wg.Wait() }

type logKey struct{}

// logger returns the request-scoped logger stored by HandleUpdate.
func (r *Router) logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logKey{}).(*zap.Logger); ok {
		return l
	}
	return r.log
}

// HandleUpdate routes a single update to the appropriate handler. A panic in a
// handler is logged and does not escape.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	log := r.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.Int("update_id", upd.UpdateID),
	)
	ctx = context.WithValue(ctx, logKey{}, log)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
		}
	}()

	// Commands
	if upd.Message != nil {
		msg := upd.Message
		if msg.Chat == nil || msg.From == nil || !msg.IsCommand() {
			return
		}
		log.Debug("command", zap.String("command", msg.Command()), zap.Int64("chat_id", msg.Chat.ID))

		switch msg.Command() {
		case "start", "help":
			r.sendText(ctx, msg.Chat.ID, startText)
		case "settz":
			r.handleSetTZ(ctx, msg)
		case "time":
			r.handleTime(ctx, msg)
		case "whenis":
			r.handleWhenIs(ctx, msg)
		case "whois":
			r.handleWhoIs(ctx, msg)
		case "aboutme":
			r.handleAboutMe(ctx, msg)
		case "times":
			r.handleTimes(ctx, msg)
		case "digest":
			r.handleDigest(ctx, msg)
		default:
			// Unknown command: ignore silently
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
			return
		}
		r.handleSelection(ctx, cb)
	}
}

// SendHTML sends an HTML-formatted message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendHTML(ctx context.Context, chatID int64, html string) error {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := sendWithRetry(ctx, r.bot, r.logger(ctx), msg)
	return err
}

// displayName is how a Telegram user appears in rosters.
func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.UserName != "" {
		name = "@" + u.UserName
	}
	return name
}
