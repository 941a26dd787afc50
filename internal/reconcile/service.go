// Package reconcile implements the notification reconciliation tick: it
// diffs the active job listing against the persisted sent-set and decides,
// per chat and per source group, whether to send fresh messages or edit
// previously tracked ones.
package reconcile

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jobalertbot/internal/jobs"
	"jobalertbot/internal/render"
	"jobalertbot/internal/sheet"
	"jobalertbot/internal/state"
	"jobalertbot/internal/transport"
)

// DefaultFreeTierLimit caps how many records of a group free chats see.
const DefaultFreeTierLimit = 2

type Config struct {
	Render render.Config

	// FreeTierLimit caps group size for non-premium chats (default 2).
	FreeTierLimit int

	// BotURL appears in the share button under job messages.
	BotURL string

	// TickTimeout bounds one full reconciliation pass. Zero disables it.
	TickTimeout time.Duration
}

func (c Config) freeLimit() int {
	if c.FreeTierLimit > 0 {
		return c.FreeTierLimit
	}
	return DefaultFreeTierLimit
}

type Service struct {
	log     zerolog.Logger
	store   state.Store
	source  sheet.Source
	adapter transport.Adapter
	cfg     Config

	// now is injectable for tests.
	now func() time.Time

	// mu serializes ticks: a manual resend cannot interleave with a
	// scheduled pass, so the persisted files see one writer at a time.
	mu sync.Mutex
}

func New(log zerolog.Logger, store state.Store, source sheet.Source, adapter transport.Adapter, cfg Config) *Service {
	return &Service{
		log:     log.With().Str("component", "reconcile").Logger(),
		store:   store,
		source:  source,
		adapter: adapter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Tick runs one full check-and-notify cycle. Delivery is best effort per
// recipient: transport failures are logged and skipped, and state is
// persisted once at the end of the pass (at-least-once delivery on a crash
// mid-tick).
func (s *Service) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickTimeout)
		defer cancel()
	}

	started := s.now()
	s.log.Info().Msg("running job check")

	records, err := s.activeRecords(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		// A reappearing listing must not be skipped or wrongly edited.
		if err := s.resetState(); err != nil {
			return err
		}
		s.log.Info().Msg("no active jobs left")
		return nil
	}

	sentJobs, err := s.store.SentJobs()
	if err != nil {
		return err
	}
	sentJobs, sentSet := pruneSent(sentJobs, records)

	subs, err := s.store.Subscribers()
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	groups := jobs.GroupBySource(records)
	idx, err := s.store.MessageIndex()
	if err != nil {
		return err
	}

	delivered := 0
	for _, chat := range subs {
		chatID, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			s.log.Warn().Str("chat", chat).Msg("skipping malformed subscriber id")
			continue
		}
		premium := state.IsPremium(s.store, chatID, s.now())

		for _, g := range groups {
			newInSource := 0
			for _, id := range g.IDs {
				if !sentSet[id] {
					newInSource++
				}
			}
			if newInSource == 0 {
				continue
			}
			// Full-refresh render: the whole current group, not a diff.
			s.deliverGroup(ctx, chatID, g, idx, premium)
			delivered++

			// The sent-set is global, not per chat: later subscribers in
			// this same pass observe these ids as already sent.
			for _, id := range g.IDs {
				if !sentSet[id] {
					sentSet[id] = true
					sentJobs = append(sentJobs, id)
				}
			}
		}

		if !premium {
			opt := &transport.SendOptions{ParseMode: "HTML"}
			if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, render.PremiumTeaser(), opt); err != nil {
				s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("teaser send failed")
			}
		}
	}

	if err := s.store.SaveSentJobs(sentJobs); err != nil {
		return err
	}
	if err := s.store.SaveMessageIndex(idx); err != nil {
		return err
	}

	s.log.Info().
		Int("active", len(records)).
		Int("groups_delivered", delivered).
		Dur("took", time.Since(started)).
		Msg("job check finished")
	return nil
}

// ResendAll forces a full re-send of every active group to a single chat
// and resets the sent-set to the full active id list. Returns the number
// of active records (zero means the chat should be told there is nothing).
func (s *Service) ResendAll(ctx context.Context, chatID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.activeRecords(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, s.resetState()
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID())
	}
	if err := s.store.SaveSentJobs(ids); err != nil {
		return 0, err
	}

	idx, err := s.store.MessageIndex()
	if err != nil {
		return 0, err
	}
	premium := state.IsPremium(s.store, chatID, s.now())
	for _, g := range jobs.GroupBySource(records) {
		s.deliverGroup(ctx, chatID, g, idx, premium)
	}
	if err := s.store.SaveMessageIndex(idx); err != nil {
		return 0, err
	}

	if !premium {
		opt := &transport.SendOptions{ParseMode: "HTML"}
		if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, render.PremiumTeaser(), opt); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("teaser send failed")
		}
	}
	return len(records), nil
}

// activeRecords reads the listing and purges expired rows from the source
// of truth, returning what remains.
func (s *Service) activeRecords(ctx context.Context) ([]jobs.Record, error) {
	rows, err := s.source.ReadRows(ctx)
	if err != nil {
		return nil, err
	}
	rows, err = s.source.RemoveExpired(ctx, rows, s.now())
	if err != nil {
		return nil, err
	}
	return jobs.Records(rows), nil
}

func (s *Service) resetState() error {
	if err := s.store.SaveSentJobs(nil); err != nil {
		return err
	}
	return s.store.SaveMessageIndex(nil)
}

// deliverGroup renders one source group for one chat and either edits the
// tracked message or sends fresh ones. Transport failures never escalate.
func (s *Service) deliverGroup(ctx context.Context, chatID int64, g jobs.Group, idx state.MessageIndex, premium bool) {
	records := g.Records
	if !premium && len(records) > s.cfg.freeLimit() {
		records = records[:s.cfg.freeLimit()]
	}

	messages := render.SplitMessages(g.Source, records, s.cfg.Render)
	chatKey := state.ChatKey(chatID)
	target := transport.ChatTarget{ChatID: chatID}
	opt := &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		Keyboard:       render.FooterKeyboard(s.cfg.BotURL),
	}

	if len(messages) > 1 {
		// Multi-chunk content is not idempotently editable; always send
		// fresh and drop any stale single-message tracking entry.
		delete(idx[chatKey], g.Source)
		for _, msg := range messages {
			if _, err := s.adapter.SendText(ctx, target, msg, opt); err != nil {
				s.log.Warn().Err(err).Int64("chat_id", chatID).Str("source", g.Source).Msg("send failed")
			}
		}
		return
	}

	text := messages[0]
	if mid, ok := idx.Lookup(chatKey, g.Source); ok {
		ref := transport.MessageRef{ChatID: chatID, MessageID: mid}
		err := s.adapter.EditText(ctx, ref, text, opt)
		if err == nil {
			return
		}
		// Deleted, unchanged or otherwise unedited: drop the tracked id so
		// the next refresh sends fresh instead of staying silent forever.
		s.log.Warn().Err(err).Int64("chat_id", chatID).Str("source", g.Source).Msg("edit failed, untracking message")
		delete(idx[chatKey], g.Source)
		return
	}

	ref, err := s.adapter.SendText(ctx, target, text, opt)
	if err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Str("source", g.Source).Msg("send failed")
		return
	}
	idx.Set(chatKey, g.Source, ref.MessageID)
	// Persist right away so a crash before end-of-tick cannot orphan the
	// message we just sent.
	if err := s.store.SaveMessageIndex(idx); err != nil {
		s.log.Warn().Err(err).Msg("message index persist failed")
	}
}

// pruneSent drops sent ids that no longer exist in the active listing,
// preserving on-disk order. Expired jobs are forgotten, not retried.
func pruneSent(sent []string, records []jobs.Record) ([]string, map[string]bool) {
	active := make(map[string]bool, len(records))
	for _, r := range records {
		active[r.ID()] = true
	}
	kept := make([]string, 0, len(sent))
	set := make(map[string]bool, len(sent))
	for _, id := range sent {
		if active[id] && !set[id] {
			kept = append(kept, id)
			set[id] = true
		}
	}
	return kept, set
}
