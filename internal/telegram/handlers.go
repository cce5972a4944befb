package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/report"
	"github.com/SilentStoat/StoatBot/internal/store"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

// --- Generic helpers ---

func (r *Router) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := sendWithRetry(ctx, r.bot, r.logger(ctx), tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger(ctx).Error("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func profileKey(msg *tgbotapi.Message, user *tgbotapi.User) domain.ProfileKey {
	return domain.ProfileKey{ScopeID: msg.Chat.ID, UserID: user.ID}
}

// lookupProfile returns the stored profile or nil when there is none.
func (r *Router) lookupProfile(ctx context.Context, key domain.ProfileKey) (*domain.Profile, error) {
	p, err := r.repo.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// --- Wizard ---

func (r *Router) handleSetTZ(ctx context.Context, msg *tgbotapi.Message) {
	if err := r.sink.Send(ctx, msg.Chat.ID, r.wizard.Start(ctx)); err != nil {
		r.logger(ctx).Error("send prompt failed", zap.Error(err))
	}
}

func (r *Router) handleSelection(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	log := r.logger(ctx)
	_ = r.answerCallback(cb.ID, "")

	chatID := cb.Message.Chat.ID
	id, value, err := DecodeCallback(cb.Data)
	if err != nil {
		// Buttons from an older bot version; restart the funnel.
		log.Info("undecodable callback", zap.String("data", cb.Data), zap.Error(err))
		r.handleSetTZ(ctx, cb.Message)
		return
	}

	out, err := r.wizard.Handle(ctx, wizard.Selection{
		Key:         profileKey(cb.Message, cb.From),
		DisplayName: displayName(cb.From),
		List:        id,
		Value:       value,
	})
	if err != nil {
		log.Error("wizard step failed", zap.Stringer("list", id), zap.Error(err))
		r.sendText(ctx, chatID, storeFailure)
		return
	}
	if out.Err != nil {
		log.Info("selection rejected", zap.Stringer("list", id), zap.String("value", value), zap.Error(out.Err))
	}
	if out.Resolved {
		log.Info("zone resolved", zap.Int64("user_id", cb.From.ID), zap.String("zone", out.Zone))
	}
	if err := r.sink.Send(ctx, chatID, out.Prompt); err != nil {
		log.Error("send prompt failed", zap.Error(err))
	}
}

// --- Lookups ---

// describeTime renders "14:30 (UTC-5, America/Bogota)" for a profile, or ""
// when it has no offset.
func describeTime(p *domain.Profile, now time.Time) string {
	if p == nil {
		return ""
	}
	off, ok := p.Offset(now)
	if !ok {
		return ""
	}
	where := domain.FormatUTC(off)
	if p.ResolvedZone != nil {
		where += ", " + *p.ResolvedZone
	}
	return domain.ClockAt(now, off) + " (" + where + ")"
}

func (r *Router) handleTime(ctx context.Context, msg *tgbotapi.Message) {
	now := r.clock.Now().UTC()
	text := "🕒 " + now.Format("2006-01-02 15:04") + " UTC"

	p, err := r.lookupProfile(ctx, profileKey(msg, msg.From))
	if err != nil {
		r.logger(ctx).Error("get profile failed", zap.Error(err))
	}
	if local := describeTime(p, now); local != "" {
		text += "\nYour time: " + local
	} else {
		text += "\nSet your time zone with /settz to see your local time."
	}
	r.sendText(ctx, msg.Chat.ID, text)
}

func (r *Router) handleWhenIs(ctx context.Context, msg *tgbotapi.Message) {
	target := msg.ReplyToMessage
	if target == nil || target.From == nil {
		r.sendText(ctx, msg.Chat.ID, replyNeeded)
		return
	}
	p, err := r.lookupProfile(ctx, profileKey(msg, target.From))
	if err != nil {
		r.logger(ctx).Error("get profile failed", zap.Error(err))
		r.sendText(ctx, msg.Chat.ID, storeFailure)
		return
	}
	name := displayName(target.From)
	local := describeTime(p, r.clock.Now())
	if local == "" {
		r.sendText(ctx, msg.Chat.ID, name+" hasn't set a time zone yet.")
		return
	}
	r.sendText(ctx, msg.Chat.ID, "For "+name+" it is "+local+".")
}

func (r *Router) handleWhoIs(ctx context.Context, msg *tgbotapi.Message) {
	target := msg.ReplyToMessage
	if target == nil || target.From == nil {
		r.sendText(ctx, msg.Chat.ID, replyNeeded)
		return
	}
	p, err := r.lookupProfile(ctx, profileKey(msg, target.From))
	if err != nil {
		r.logger(ctx).Error("get profile failed", zap.Error(err))
		r.sendText(ctx, msg.Chat.ID, storeFailure)
		return
	}
	name := displayName(target.From)
	if p == nil {
		r.sendText(ctx, msg.Chat.ID, name+" has no settings here yet.")
		return
	}

	zone, offset, dst := notSet, notSet, notSet
	if p.ResolvedZone != nil {
		zone = *p.ResolvedZone
	}
	if p.UTCOffsetMinutes != nil {
		offset = domain.FormatUTC(*p.UTCOffsetMinutes)
	}
	if p.DSTObserved != nil {
		dst = "no"
		if *p.DSTObserved {
			dst = "yes"
		}
	}
	r.sendText(ctx, msg.Chat.ID, fmt.Sprintf(whoisFmt,
		name, zone, offset, dst, orNotSet(p.Locale), orNotSet(p.Color)))
}

func orNotSet(s string) string {
	if s == "" {
		return notSet
	}
	return s
}

// --- Preferences ---

func (r *Router) handleAboutMe(ctx context.Context, msg *tgbotapi.Message) {
	field, value, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	value = strings.TrimSpace(value)

	var saved string
	patch := domain.ProfilePatch{}
	if name := displayName(msg.From); name != "" {
		patch.DisplayName = &name
	}
	switch strings.ToLower(field) {
	case "locale":
		loc, err := domain.ParseLocale(value)
		if err != nil {
			r.sendText(ctx, msg.Chat.ID, "That is not a language tag I know. Examples: en-US, de-CH, pt-BR")
			return
		}
		patch.Locale, saved = &loc, loc
	case "color", "colour":
		c, err := domain.ParseColor(value)
		if err != nil {
			r.sendText(ctx, msg.Chat.ID, "Pick one of: "+strings.Join(domain.Palette, ", "))
			return
		}
		patch.Color, saved = &c, c
	default:
		r.sendText(ctx, msg.Chat.ID, aboutMeUsage)
		return
	}

	if err := r.repo.Upsert(ctx, profileKey(msg, msg.From), patch); err != nil {
		r.logger(ctx).Error("save preference failed", zap.Error(err))
		r.sendText(ctx, msg.Chat.ID, storeFailure)
		return
	}
	r.sendText(ctx, msg.Chat.ID, "Saved "+strings.ToLower(field)+": "+saved)
}

// --- Roster ---

func (r *Router) handleTimes(ctx context.Context, msg *tgbotapi.Message) {
	profiles, err := r.repo.ListScope(ctx, msg.Chat.ID)
	if err != nil {
		r.logger(ctx).Error("list scope failed", zap.Error(err))
		r.sendText(ctx, msg.Chat.ID, storeFailure)
		return
	}
	rep := report.Build(profiles, r.clock.Now())
	if err := r.SendHTML(ctx, msg.Chat.ID, rep.HTML()); err != nil {
		r.logger(ctx).Error("send roster failed", zap.Error(err))
	}
}

func (r *Router) handleDigest(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	if strings.EqualFold(arg, "off") {
		if err := r.repo.DisableDigest(ctx, chatID); err != nil {
			r.logger(ctx).Error("disable digest failed", zap.Error(err))
			r.sendText(ctx, chatID, storeFailure)
			return
		}
		r.sendText(ctx, chatID, "Daily roster turned off.")
		return
	}

	at, err := domain.ParseClock(arg)
	if err != nil {
		r.sendText(ctx, chatID, digestUsage)
		return
	}
	next := domain.NextDigest(r.clock.Now(), at)
	if err := r.repo.SetDigest(ctx, chatID, at, next); err != nil {
		r.logger(ctx).Error("set digest failed", zap.Error(err))
		r.sendText(ctx, chatID, storeFailure)
		return
	}
	r.sendText(ctx, chatID, "Daily roster scheduled for "+domain.FormatMinutes(at)+" UTC. Next: "+next.Format("2006-01-02 15:04")+" UTC.")
}
