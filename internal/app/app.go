package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/config"
	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/scheduler"
	"github.com/SilentStoat/StoatBot/internal/store"
	"github.com/SilentStoat/StoatBot/internal/telegram"
	"github.com/SilentStoat/StoatBot/internal/tzindex"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Repo, error) {
	if cfg.StoreDriver == "mongo" {
		r, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LoadIndex enumerates zone names from ZONEINFO_PATH, or the first default
// source that exists, and classifies them for the reference year.
func LoadIndex(cfg config.Config, log *zap.Logger) (*tzindex.Index, error) {
	paths := tzindex.DefaultSources()
	if cfg.ZoneInfoPath != "" {
		paths = []string{cfg.ZoneInfoPath}
	}
	names, src, err := tzindex.LoadFirst(paths)
	if err != nil {
		return nil, fmt.Errorf("zone names: %w", err)
	}
	year := cfg.Year(time.Now())
	idx, err := tzindex.Build(names, year)
	if err != nil {
		return nil, err
	}
	log.Info("zone index ready",
		zap.String("source", src),
		zap.Int("year", year),
		zap.Int("zones", idx.Len()),
		zap.Int("buckets", len(idx.Keys())),
	)
	return idx, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting stoatbot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("store", a.cfg.StoreDriver),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := OpenStore(ctx, a.cfg, a.log)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo
	defer func() { _ = a.repo.Close() }()
	a.log.Info("store ready")

	idx, err := LoadIndex(a.cfg, a.log)
	if err != nil {
		a.log.Error("zone index failed", zap.Error(err))
		return err
	}

	clock := domain.SystemClock{}
	a.router = telegram.NewRouter(a.bot, a.log, repo, wizard.New(idx, repo, clock), clock, telegram.Options{
		MaxConcurrent: a.cfg.MaxConcurrentUpdates,
		DedupeTTL:     a.cfg.DedupeTTL,
	})

	if a.cfg.InstallCommands {
		if _, err := telegram.InstallCommands(a.bot, a.log); err != nil {
			a.log.Warn("install commands failed", zap.Error(err))
		}
	}

	go scheduler.New(repo, a.log, a.router, clock, a.cfg.DigestPoll).Run(ctx)

	deps := httpDeps{log: a.log, ready: repo}
	if a.cfg.RunMode == "webhook" {
		deps.secret = a.cfg.WebhookSecret
		deps.parse = a.bot.HandleUpdate
		deps.dispatch = func(upd tgbotapi.Update) { a.router.Enqueue(ctx, upd) }
	}
	a.httpSrv.Handler = newHandler(deps)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	switch a.cfg.RunMode {
	case "webhook":
		if err := a.registerWebhook(); err != nil {
			a.log.Error("set webhook failed", zap.Error(err))
			a.shutdown()
			return err
		}
		<-ctx.Done()
	default:
		a.poll(ctx)
	}

	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// poll receives updates with long polling until ctx is canceled.
func (a *App) poll(ctx context.Context) {
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.log.Warn("delete webhook failed", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-updCh:
			a.router.Dispatch(ctx, upd)
		}
	}
}

// registerWebhook points Telegram at WEBHOOK_URL with the shared secret.
func (a *App) registerWebhook() error {
	params := tgbotapi.Params{"url": strings.TrimRight(a.cfg.WebhookURL, "/") + WebhookPath}
	params.AddNonEmpty("secret_token", a.cfg.WebhookSecret)
	if _, err := a.bot.MakeRequest("setWebhook", params); err != nil {
		return err
	}
	a.log.Info("webhook registered", zap.String("url", params["url"]))
	return nil
}

func (a *App) shutdown() {
	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if a.router != nil {
		a.router.Wait()
	}
}
