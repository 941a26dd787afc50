// Package bot is the command layer: it consumes transport updates and
// maps chat commands, callbacks and payment screenshots onto the
// reconciler, state store and broadcast service.
package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jobalertbot/internal/broadcast"
	"jobalertbot/internal/reconcile"
	"jobalertbot/internal/state"
	"jobalertbot/internal/transport"
)

type Config struct {
	AdminID int64
	BotURL  string

	UPIID     string
	Amount    int
	PayeeName string
}

func (c Config) amount() int {
	if c.Amount > 0 {
		return c.Amount
	}
	return 199
}

type Router struct {
	log         zerolog.Logger
	adapter     transport.Adapter
	store       state.Store
	reconciler  *reconcile.Service
	broadcaster *broadcast.Service
	cfg         Config

	now func() time.Time
}

func NewRouter(log zerolog.Logger, adapter transport.Adapter, store state.Store, rec *reconcile.Service, bc *broadcast.Service, cfg Config) *Router {
	return &Router{
		log:         log.With().Str("component", "bot").Logger(),
		adapter:     adapter,
		store:       store,
		reconciler:  rec,
		broadcaster: bc,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run consumes updates until ctx is done. Updates are handled one at a
// time: handlers read-modify-write the persisted lists, and a single
// consumer keeps those sequences atomic without file locking.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			r.handle(ctx, up)
		}
	}
}

func (r *Router) handle(ctx context.Context, up transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Any("panic", rec).Str("stack", string(debug.Stack())).Msg("panic in update handler")
		}
	}()

	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message == nil {
			return
		}
		cmd, args := splitCommand(up.Message.Text)
		if cmd == "" {
			return
		}
		r.dispatch(ctx, cmd, args, up.Message)
	case transport.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, up.Callback)
		}
	case transport.UpdatePhoto:
		if up.Photo != nil {
			r.handlePhoto(ctx, up.Photo)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, cmd string, args []string, m *transport.Message) {
	switch cmd {
	case "start":
		r.cmdStart(ctx, m)
	case "stop":
		r.cmdStop(ctx, m)
	case "resendall":
		r.cmdResendAll(ctx, m)
	case "subscribe":
		r.cmdSubscribe(ctx, m.ChatID)
	case "addpremium":
		r.cmdAddPremium(ctx, m, args)
	case "removepremium":
		r.cmdRemovePremium(ctx, m, args)
	case "premiumstatus":
		r.cmdPremiumStatus(ctx, m)
	case "broadcast":
		r.cmdBroadcast(ctx, m, args)
	}
}

// splitCommand parses "/cmd@BotName arg arg" into (cmd, args). Non-command
// text yields an empty command.
func splitCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (r *Router) isAdmin(userID int64) bool { return userID == r.cfg.AdminID }

// reply sends a plain response to the invoking chat, best effort.
func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}
