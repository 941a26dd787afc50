package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// File names under the store directory. These match the legacy layout so
// an existing deployment's state carries over unchanged.
const (
	subscribersFile = "subscribers.json"
	sentJobsFile    = "sent_jobs.json"
	messageIDsFile  = "message_ids.json"
	premiumFile     = "premium_users.json"
)

// fileStore keeps each structure in its own JSON file. Reads tolerate a
// missing or corrupt file by returning the empty value; writes go through
// a temp file plus rename so a crash never leaves a half-written file.
type fileStore struct {
	log zerolog.Logger
	dir string
	mu  sync.Mutex
}

func openFile(cfg Config, log zerolog.Logger) (Store, error) {
	dir := cfg.Path
	if dir == "" {
		return nil, errors.New("state: path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log.With().Str("component", "state").Logger(), dir: dir}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Subscribers() ([]string, error) {
	var subs []string
	s.read(subscribersFile, &subs)
	return subs, nil
}

func (s *fileStore) SaveSubscribers(subs []string) error {
	return s.write(subscribersFile, emptySlice(subs))
}

func (s *fileStore) SentJobs() ([]string, error) {
	var ids []string
	s.read(sentJobsFile, &ids)
	return ids, nil
}

func (s *fileStore) SaveSentJobs(ids []string) error {
	return s.write(sentJobsFile, emptySlice(ids))
}

func (s *fileStore) MessageIndex() (MessageIndex, error) {
	idx := MessageIndex{}
	s.read(messageIDsFile, &idx)
	return idx, nil
}

func (s *fileStore) SaveMessageIndex(idx MessageIndex) error {
	if idx == nil {
		idx = MessageIndex{}
	}
	return s.write(messageIDsFile, idx)
}

func (s *fileStore) PremiumUsers() (map[string]string, error) {
	users := map[string]string{}
	s.read(premiumFile, &users)
	return users, nil
}

func (s *fileStore) SavePremiumUsers(users map[string]string) error {
	if users == nil {
		users = map[string]string{}
	}
	return s.write(premiumFile, users)
}

// read decodes the named file into out. Missing files are normal (first
// run); decode failures are logged and leave out untouched, which reads
// as the empty value.
func (s *fileStore) read(name string, out any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("state file is corrupt, starting empty")
	}
}

func (s *fileStore) write(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func emptySlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
