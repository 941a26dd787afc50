// Package broadcast fans one message out to many chats with bounded
// concurrency and a shared rate limit, isolating per-recipient failures.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"jobalertbot/internal/transport"
)

type Config struct {
	// Workers bounds concurrent sends (default 4).
	Workers int
	// RatePerSec caps outgoing sends across all workers (default 20,
	// under Telegram's ~30 msg/s bot limit).
	RatePerSec int
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 4
}

func (c Config) rps() int {
	if c.RatePerSec > 0 {
		return c.RatePerSec
	}
	return 20
}

// Result summarizes one fan-out job.
type Result struct {
	JobID  string
	Total  int
	Sent   int
	Failed int
	Took   time.Duration
}

type Service struct {
	log     zerolog.Logger
	adapter transport.Adapter
	cfg     Config
}

func New(log zerolog.Logger, adapter transport.Adapter, cfg Config) *Service {
	return &Service{
		log:     log.With().Str("component", "broadcast").Logger(),
		adapter: adapter,
		cfg:     cfg,
	}
}

// Send delivers text to every target. It blocks until all sends finish or
// ctx is cancelled; individual failures are logged and counted, never
// propagated.
func (s *Service) Send(ctx context.Context, targets []int64, text string, opt *transport.SendOptions) Result {
	jobID := uuid.NewString()
	started := time.Now()
	log := s.log.With().Str("job", jobID).Logger()
	log.Info().Int("total", len(targets)).Msg("broadcast started")

	limiter := rate.NewLimiter(rate.Limit(s.cfg.rps()), s.cfg.rps())
	queue := make(chan int64)
	var sent, failed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chatID := range queue {
				if err := limiter.Wait(ctx); err != nil {
					failed.Add(1)
					continue
				}
				if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
					log.Warn().Err(err).Int64("chat_id", chatID).Msg("broadcast send failed")
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}

enqueue:
	for _, t := range targets {
		select {
		case queue <- t:
		case <-ctx.Done():
			// Remaining targets stay unsent; Sent+Failed < Total records that.
			break enqueue
		}
	}
	close(queue)
	wg.Wait()
	return s.finish(log, jobID, len(targets), &sent, &failed, started)
}

func (s *Service) finish(log zerolog.Logger, jobID string, total int, sent, failed *atomic.Int64, started time.Time) Result {
	res := Result{
		JobID:  jobID,
		Total:  total,
		Sent:   int(sent.Load()),
		Failed: int(failed.Load()),
		Took:   time.Since(started),
	}
	ev := log.Info()
	if res.Failed > 0 {
		ev = log.Warn()
	}
	ev.Int("sent", res.Sent).Int("failed", res.Failed).Dur("took", res.Took).Msg("broadcast finished")
	return res
}
