// Package state persists the four reconciliation structures: subscribers,
// sent jobs, per-chat message ids and premium entitlements.
//
// Every accessor re-reads from durable storage and every mutation writes
// back immediately. Nothing is cached across reconciliation ticks, so
// administrative changes take effect on the very next check.
package state

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MessageIndex maps chat-id → source name → transport message id. An entry
// exists only while the last render for that (chat, source) fit in a single
// message; multi-chunk renders are never edit-tracked.
type MessageIndex map[string]map[string]int

// Store is the persistence API used by the reconciler and command layer.
type Store interface {
	Subscribers() ([]string, error)
	SaveSubscribers(subs []string) error

	SentJobs() ([]string, error)
	SaveSentJobs(ids []string) error

	MessageIndex() (MessageIndex, error)
	SaveMessageIndex(idx MessageIndex) error

	PremiumUsers() (map[string]string, error)
	SavePremiumUsers(users map[string]string) error

	Close() error
}

// Config selects the persistence backend.
//
// Driver values:
//   - "file": one JSON file per structure under Path (default)
//   - "sqlite": a single SQLite database file at Path
type Config struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"-"`
}

// Open initializes the configured store.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("state: unknown driver: " + driver)
	}
}

// Lookup returns the message id tracked for (chat, source).
func (m MessageIndex) Lookup(chat, source string) (int, bool) {
	bySource, ok := m[chat]
	if !ok {
		return 0, false
	}
	id, ok := bySource[source]
	return id, ok
}

// Set records the message id for (chat, source).
func (m MessageIndex) Set(chat, source string, messageID int) {
	if m[chat] == nil {
		m[chat] = map[string]int{}
	}
	m[chat][source] = messageID
}
