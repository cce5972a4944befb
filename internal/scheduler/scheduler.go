package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/report"
	"github.com/SilentStoat/StoatBot/internal/store"
)

// Sender posts an HTML message to a chat.
// telegram.Router implements this.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, html string) error
}

// Store is what the scheduler reads and writes.
type Store interface {
	store.ProfileStore
	store.DigestStore
}

// Scheduler periodically polls for due digests and posts each scope's roster.
type Scheduler struct {
	repo     Store
	log      *zap.Logger
	sender   Sender
	clock    domain.Clock
	interval time.Duration
	batch    int
}

// New creates a Scheduler polling every interval.
func New(repo Store, log *zap.Logger, sender Sender, clock domain.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		repo:     repo,
		log:      log,
		sender:   sender,
		clock:    clock,
		interval: interval,
		batch:    100,
	}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one cycle: find due digests, post, reschedule.
// It returns how many rosters were posted.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock.Now().UTC()

	due, err := s.repo.ListDueDigests(ctx, now, s.batch)
	if err != nil {
		s.log.Error("ListDueDigests failed", zap.Error(err))
		return 0
	}

	sent := 0
	for _, d := range due {
		log := s.log.With(zap.Int64("scope_id", d.ScopeID))

		profiles, err := s.repo.ListScope(ctx, d.ScopeID)
		if err != nil {
			log.Error("ListScope failed", zap.Error(err))
			continue
		}
		next := domain.NextDigest(now, d.AtMinutes)

		rep := report.Build(profiles, now)
		if rep.Empty() {
			// Nothing to post today; move on to the next slot.
			if err := s.repo.MarkDigestSent(ctx, d.ScopeID, next, now); err != nil {
				log.Error("MarkDigestSent failed", zap.Error(err))
			}
			continue
		}

		if err := s.sender.SendHTML(ctx, d.ScopeID, "🕒 <b>Daily roster</b>\n"+rep.HTML()); err != nil {
			log.Error("send failed", zap.Error(err))
			continue
		}
		sent++

		if err := s.repo.MarkDigestSent(ctx, d.ScopeID, next, now); err != nil {
			log.Error("MarkDigestSent failed", zap.Error(err))
		}
	}
	return sent
}
