package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobalertbot/internal/state"
	"jobalertbot/internal/transport"
)

// premiumGrantDays is how long one manual payment buys.
const premiumGrantDays = 30

func (r *Router) cmdStart(ctx context.Context, m *transport.Message) {
	added, err := state.AddSubscriber(r.store, m.ChatID)
	if err != nil {
		r.log.Error().Err(err).Msg("subscribe failed")
		r.reply(ctx, m.ChatID, "⚠️ Something went wrong, please try again.")
		return
	}
	if added {
		r.reply(ctx, m.ChatID, fmt.Sprintf("✅ Subscribed to job updates.\nYour Chat ID: %d", m.ChatID))
	} else {
		r.reply(ctx, m.ChatID, fmt.Sprintf("ℹ️ Already subscribed.\nYour Chat ID: %d", m.ChatID))
	}
}

func (r *Router) cmdStop(ctx context.Context, m *transport.Message) {
	removed, err := state.RemoveSubscriber(r.store, m.ChatID)
	if err != nil {
		r.log.Error().Err(err).Msg("unsubscribe failed")
		r.reply(ctx, m.ChatID, "⚠️ Something went wrong, please try again.")
		return
	}
	if removed {
		r.reply(ctx, m.ChatID, "❌ Unsubscribed.")
	} else {
		r.reply(ctx, m.ChatID, "ℹ️ Not subscribed.")
	}
}

func (r *Router) cmdResendAll(ctx context.Context, m *transport.Message) {
	active, err := r.reconciler.ResendAll(ctx, m.ChatID)
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", m.ChatID).Msg("resendall failed")
		r.reply(ctx, m.ChatID, "⚠️ Could not fetch jobs right now, please try again later.")
		return
	}
	if active == 0 {
		r.reply(ctx, m.ChatID, "No active jobs.")
	}
}

func (r *Router) cmdAddPremium(ctx context.Context, m *transport.Message, args []string) {
	if !r.isAdmin(m.FromID) {
		return
	}
	target, ok := parseChatID(args)
	if !ok {
		r.reply(ctx, m.ChatID, "Usage: /addpremium <chat_id>")
		return
	}

	until := r.now().AddDate(0, 0, premiumGrantDays)
	expiry, err := state.GrantPremium(r.store, target, until)
	if err != nil {
		r.log.Error().Err(err).Int64("target", target).Msg("premium grant failed")
		r.reply(ctx, m.ChatID, "⚠️ Could not save premium entitlement.")
		return
	}
	if _, err := state.AddSubscriber(r.store, target); err != nil {
		r.log.Warn().Err(err).Int64("target", target).Msg("auto-subscribe failed")
	}

	r.reply(ctx, m.ChatID, fmt.Sprintf("✅ %d added as Premium until %s", target, expiry))
	notice := fmt.Sprintf(
		"🌟 Congratulations! You are now a Premium user until %s 🚀\nYou will now automatically receive all job updates.",
		expiry,
	)
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: target}, notice, nil); err != nil {
		r.log.Warn().Err(err).Int64("target", target).Msg("could not notify premium user")
	}
}

func (r *Router) cmdRemovePremium(ctx context.Context, m *transport.Message, args []string) {
	if !r.isAdmin(m.FromID) {
		return
	}
	target, ok := parseChatID(args)
	if !ok {
		r.reply(ctx, m.ChatID, "Usage: /removepremium <chat_id>")
		return
	}

	removed, err := state.RevokePremium(r.store, target)
	if err != nil {
		r.log.Error().Err(err).Int64("target", target).Msg("premium revoke failed")
		r.reply(ctx, m.ChatID, "⚠️ Could not update premium entitlement.")
		return
	}
	if !removed {
		r.reply(ctx, m.ChatID, fmt.Sprintf("User %d is not in Premium list.", target))
		return
	}
	if _, err := state.RemoveSubscriber(r.store, target); err != nil {
		r.log.Warn().Err(err).Int64("target", target).Msg("unsubscribe failed")
	}

	r.reply(ctx, m.ChatID, fmt.Sprintf("❌ %d removed from Premium and unsubscribed.", target))
	notice := "⚠️ Your Premium subscription has been revoked. You will no longer receive job updates."
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: target}, notice, nil); err != nil {
		r.log.Warn().Err(err).Int64("target", target).Msg("could not notify user")
	}
}

func (r *Router) cmdPremiumStatus(ctx context.Context, m *transport.Message) {
	switch {
	case state.IsPremium(r.store, m.FromID, r.now()):
		r.reply(ctx, m.ChatID, "✅ You are a Premium user. You will continue receiving unrestricted job updates.")
	case state.IsSubscriber(r.store, m.FromID):
		r.reply(ctx, m.ChatID,
			"ℹ️ You are a Free user. You will get limited job alerts.\n\n"+
				"👉 Use /subscribe to upgrade and unlock all job alerts.")
	default:
		r.reply(ctx, m.ChatID,
			"⚠️ You are not subscribed.\n\n"+
				"👉 Use /subscribe to start receiving job alerts.")
	}
}

func (r *Router) cmdBroadcast(ctx context.Context, m *transport.Message, args []string) {
	if !r.isAdmin(m.FromID) {
		r.reply(ctx, m.ChatID, "❌ You are not allowed to use this command.")
		return
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		r.reply(ctx, m.ChatID, "Usage: /broadcast <message>")
		return
	}

	subs, err := r.store.Subscribers()
	if err != nil {
		r.log.Error().Err(err).Msg("broadcast: reading subscribers failed")
		r.reply(ctx, m.ChatID, "⚠️ Could not read subscriber list.")
		return
	}
	targets := make([]int64, 0, len(subs))
	for _, s := range subs {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		targets = append(targets, id)
	}

	res := r.broadcaster.Send(ctx, targets, text, &transport.SendOptions{ParseMode: "HTML"})
	r.reply(ctx, m.ChatID, fmt.Sprintf("✅ Broadcast sent to %d subscriber(s), %d failed.", res.Sent, res.Failed))
}

func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	if err := r.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.log.Debug().Err(err).Msg("callback answer failed")
	}
	switch cb.Data {
	case "subscribe":
		r.cmdSubscribe(ctx, cb.ChatID)
	case "copy_upi":
		r.reply(ctx, cb.ChatID, fmt.Sprintf("📌 UPI ID: <code>%s</code>", r.cfg.UPIID))
	}
}

// handlePhoto forwards payment screenshots from regular chats to the
// admin for manual review.
func (r *Router) handlePhoto(ctx context.Context, p *transport.Photo) {
	if r.isAdmin(p.FromID) {
		return
	}

	caption := fmt.Sprintf(
		"📸 Payment screenshot received!\n\n👤 From: %s (@%s)\n🆔 Chat ID: %d\n\n👉 Use /addpremium %d to approve.",
		p.FromName, p.FromUsername, p.ChatID, p.ChatID,
	)
	_, err := r.adapter.SendPhoto(ctx, transport.ChatTarget{ChatID: r.cfg.AdminID}, transport.PhotoOut{
		FileID:  p.FileID,
		Caption: caption,
	})
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", p.ChatID).Msg("screenshot forward failed")
		r.reply(ctx, p.ChatID, "⚠️ Could not forward screenshot to admin.")
		return
	}
	r.reply(ctx, p.ChatID, "📩 Screenshot received! Waiting for admin approval ⏳")
}

func parseChatID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetClock overrides the time source. Tests only.
func (r *Router) SetClock(now func() time.Time) { r.now = now }
