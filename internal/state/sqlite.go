package state

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps all four structures in one database file. Insertion
// order is preserved through the rowid so list-valued structures round-trip
// in the same order as the file driver.
type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func openSQLite(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("state: path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log.With().Str("component", "state").Logger()}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate() error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(string(b))
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Subscribers() ([]string, error) {
	return s.readList("SELECT chat_id FROM subscribers ORDER BY pos")
}

func (s *sqliteStore) SaveSubscribers(subs []string) error {
	return s.writeList("subscribers", "chat_id", subs)
}

func (s *sqliteStore) SentJobs() ([]string, error) {
	return s.readList("SELECT job_id FROM sent_jobs ORDER BY pos")
}

func (s *sqliteStore) SaveSentJobs(ids []string) error {
	return s.writeList("sent_jobs", "job_id", ids)
}

func (s *sqliteStore) MessageIndex() (MessageIndex, error) {
	rows, err := s.db.Query("SELECT chat_id, source, message_id FROM message_ids")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idx := MessageIndex{}
	for rows.Next() {
		var chat, source string
		var mid int
		if err := rows.Scan(&chat, &source, &mid); err != nil {
			return nil, err
		}
		idx.Set(chat, source, mid)
	}
	return idx, rows.Err()
}

func (s *sqliteStore) SaveMessageIndex(idx MessageIndex) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM message_ids"); err != nil {
		return err
	}
	for chat, bySource := range idx {
		for source, mid := range bySource {
			if _, err := tx.Exec(
				"INSERT INTO message_ids (chat_id, source, message_id) VALUES (?, ?, ?)",
				chat, source, mid,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) PremiumUsers() (map[string]string, error) {
	rows, err := s.db.Query("SELECT chat_id, expires_on FROM premium_users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := map[string]string{}
	for rows.Next() {
		var chat, exp string
		if err := rows.Scan(&chat, &exp); err != nil {
			return nil, err
		}
		users[chat] = exp
	}
	return users, rows.Err()
}

func (s *sqliteStore) SavePremiumUsers(users map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM premium_users"); err != nil {
		return err
	}
	for chat, exp := range users {
		if _, err := tx.Exec(
			"INSERT INTO premium_users (chat_id, expires_on) VALUES (?, ?)",
			chat, exp,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) readList(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqliteStore) writeList(table, column string, values []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", table, column)
	for _, v := range values {
		if _, err := tx.Exec(stmt, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}
