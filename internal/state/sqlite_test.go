package state

import (
	"path/filepath"
	"reflect"
	"testing"

	"jobalertbot/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if err := st.SaveSubscribers([]string{"300", "100", "200"}); err != nil {
		t.Fatalf("SaveSubscribers: %v", err)
	}
	subs, err := st.Subscribers()
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	// Insertion order survives the round trip.
	if !reflect.DeepEqual(subs, []string{"300", "100", "200"}) {
		t.Errorf("subscribers = %v", subs)
	}

	if err := st.SaveSubscribers([]string{"100"}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	subs, _ = st.Subscribers()
	if !reflect.DeepEqual(subs, []string{"100"}) {
		t.Errorf("rewrite left %v", subs)
	}

	if err := st.SaveSentJobs([]string{"clerk|01/01/2030", "guard|02/01/2030"}); err != nil {
		t.Fatalf("SaveSentJobs: %v", err)
	}
	sent, err := st.SentJobs()
	if err != nil {
		t.Fatalf("SentJobs: %v", err)
	}
	if !reflect.DeepEqual(sent, []string{"clerk|01/01/2030", "guard|02/01/2030"}) {
		t.Errorf("sent = %v", sent)
	}

	idx := MessageIndex{}
	idx.Set("100", "SSC", 7)
	idx.Set("100", "Railways", 9)
	if err := st.SaveMessageIndex(idx); err != nil {
		t.Fatalf("SaveMessageIndex: %v", err)
	}
	got, err := st.MessageIndex()
	if err != nil {
		t.Fatalf("MessageIndex: %v", err)
	}
	if !reflect.DeepEqual(got, idx) {
		t.Errorf("index = %v, want %v", got, idx)
	}

	if err := st.SavePremiumUsers(map[string]string{"100": "2030-01-31"}); err != nil {
		t.Fatalf("SavePremiumUsers: %v", err)
	}
	users, err := st.PremiumUsers()
	if err != nil {
		t.Fatalf("PremiumUsers: %v", err)
	}
	if users["100"] != "2030-01-31" {
		t.Errorf("users = %v", users)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.db")
	cfg := Config{Driver: "sqlite", Path: path}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.SaveSentJobs([]string{"clerk|01/01/2030"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	sent, err := st.SentJobs()
	if err != nil {
		t.Fatalf("SentJobs: %v", err)
	}
	if !reflect.DeepEqual(sent, []string{"clerk|01/01/2030"}) {
		t.Errorf("sent after reopen = %v", sent)
	}
}
