package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"jobalertbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	if err := st.SaveSubscribers([]string{"100", "200"}); err != nil {
		t.Fatalf("SaveSubscribers: %v", err)
	}
	subs, err := st.Subscribers()
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	if !reflect.DeepEqual(subs, []string{"100", "200"}) {
		t.Errorf("subscribers = %v", subs)
	}

	if err := st.SaveSentJobs([]string{"clerk|01/01/2030"}); err != nil {
		t.Fatalf("SaveSentJobs: %v", err)
	}
	sent, err := st.SentJobs()
	if err != nil {
		t.Fatalf("SentJobs: %v", err)
	}
	if !reflect.DeepEqual(sent, []string{"clerk|01/01/2030"}) {
		t.Errorf("sent = %v", sent)
	}

	idx := MessageIndex{}
	idx.Set("100", "SSC", 42)
	if err := st.SaveMessageIndex(idx); err != nil {
		t.Fatalf("SaveMessageIndex: %v", err)
	}
	got, err := st.MessageIndex()
	if err != nil {
		t.Fatalf("MessageIndex: %v", err)
	}
	if id, ok := got.Lookup("100", "SSC"); !ok || id != 42 {
		t.Errorf("Lookup = %d, %v", id, ok)
	}

	if err := st.SavePremiumUsers(map[string]string{"100": "2030-01-01"}); err != nil {
		t.Fatalf("SavePremiumUsers: %v", err)
	}
	users, err := st.PremiumUsers()
	if err != nil {
		t.Fatalf("PremiumUsers: %v", err)
	}
	if users["100"] != "2030-01-01" {
		t.Errorf("premium users = %v", users)
	}
}

func TestFileStoreEmptyOnFirstRun(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	subs, err := st.Subscribers()
	if err != nil || len(subs) != 0 {
		t.Errorf("Subscribers = %v, %v", subs, err)
	}
	sent, err := st.SentJobs()
	if err != nil || len(sent) != 0 {
		t.Errorf("SentJobs = %v, %v", sent, err)
	}
	users, err := st.PremiumUsers()
	if err != nil || len(users) != 0 {
		t.Errorf("PremiumUsers = %v, %v", users, err)
	}
}

func TestFileStoreCorruptFileReadsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, subscribersFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	subs, err := st.Subscribers()
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("corrupt file should read empty, got %v", subs)
	}
}

func TestFileStoreNilWritesEmptyCollections(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if err := st.SaveSentJobs(nil); err != nil {
		t.Fatalf("SaveSentJobs: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, sentJobsFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("nil slice should persist as empty array, got %q", b)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bolt", Path: t.TempDir()}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestIsPremium(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	today := time.Date(2030, time.June, 15, 12, 0, 0, 0, time.UTC)

	if IsPremium(st, 100, today) {
		t.Error("missing entry should not be premium")
	}

	exp, err := GrantPremium(st, 100, time.Date(2030, time.June, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}
	if exp != "2030-06-15" {
		t.Errorf("exp = %q", exp)
	}
	if !IsPremium(st, 100, today) {
		t.Error("entitlement expiring today should still be premium")
	}
	if IsPremium(st, 100, today.AddDate(0, 0, 1)) {
		t.Error("expired entitlement should not be premium")
	}

	if err := st.SavePremiumUsers(map[string]string{"200": "soon"}); err != nil {
		t.Fatal(err)
	}
	if IsPremium(st, 200, today) {
		t.Error("malformed expiry should fail closed")
	}
}

func TestRevokePremium(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	removed, err := RevokePremium(st, 100)
	if err != nil || removed {
		t.Fatalf("RevokePremium on empty store = %v, %v", removed, err)
	}

	if _, err := GrantPremium(st, 100, time.Now().AddDate(0, 0, 30)); err != nil {
		t.Fatal(err)
	}
	removed, err = RevokePremium(st, 100)
	if err != nil || !removed {
		t.Fatalf("RevokePremium = %v, %v", removed, err)
	}
	if IsPremium(st, 100, time.Now()) {
		t.Error("revoked user should not be premium")
	}
}

func TestSubscriberHelpers(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	added, err := AddSubscriber(st, 100)
	if err != nil || !added {
		t.Fatalf("AddSubscriber = %v, %v", added, err)
	}
	added, err = AddSubscriber(st, 100)
	if err != nil || added {
		t.Fatalf("duplicate AddSubscriber = %v, %v", added, err)
	}
	if !IsSubscriber(st, 100) {
		t.Error("expected subscriber")
	}

	removed, err := RemoveSubscriber(st, 100)
	if err != nil || !removed {
		t.Fatalf("RemoveSubscriber = %v, %v", removed, err)
	}
	if IsSubscriber(st, 100) {
		t.Error("removed chat still listed")
	}
	removed, err = RemoveSubscriber(st, 100)
	if err != nil || removed {
		t.Fatalf("second RemoveSubscriber = %v, %v", removed, err)
	}
}
