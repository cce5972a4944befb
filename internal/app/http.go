package app

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// WebhookPath is where Telegram posts updates in webhook mode.
const WebhookPath = "/telegram/webhook"

// secretHeader carries the token registered with setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type pinger interface {
	Ping(ctx context.Context) error
}

// httpDeps are the collaborators of the HTTP surface.
type httpDeps struct {
	log    *zap.Logger
	ready  pinger
	secret string
	// parse decodes an update from a webhook request; nil disables the route.
	parse    func(*http.Request) (*tgbotapi.Update, error)
	dispatch func(tgbotapi.Update)
}

func newHandler(d httpDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := d.ready.Ping(ctx); err != nil {
			d.log.Warn("readiness check failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if d.parse != nil {
		r.Post(WebhookPath, func(w http.ResponseWriter, req *http.Request) {
			if d.secret != "" && subtle.ConstantTimeCompare([]byte(req.Header.Get(secretHeader)), []byte(d.secret)) != 1 {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			upd, err := d.parse(req)
			if err != nil {
				d.log.Warn("bad webhook payload", zap.Error(err))
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			d.dispatch(*upd)
			w.WriteHeader(http.StatusOK)
		})
	}
	return r
}
