package bot

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"jobalertbot/internal/broadcast"
	"jobalertbot/internal/jobs"
	"jobalertbot/internal/reconcile"
	"jobalertbot/internal/sheet"
	"jobalertbot/internal/state"
	"jobalertbot/internal/transport"
	"jobalertbot/internal/transport/transporttest"
	"jobalertbot/pkg/logx"
)

const adminID int64 = 999

// emptySource is a listing with nothing active, enough for command tests
// that never exercise delivery.
type emptySource struct{}

func (emptySource) ReadRows(ctx context.Context) ([]jobs.Row, error) { return nil, nil }
func (emptySource) RemoveExpired(ctx context.Context, rows []jobs.Row, today time.Time) ([]jobs.Row, error) {
	return rows, nil
}
func (emptySource) AppendJobs(ctx context.Context, recs []jobs.Record) (int, error) { return 0, nil }

var _ sheet.Source = emptySource{}

func newTestRouter(t *testing.T) (*Router, state.Store, *transporttest.Adapter) {
	t.Helper()
	st, err := state.Open(state.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ad := &transporttest.Adapter{}
	rec := reconcile.New(logx.Nop(), st, emptySource{}, ad, reconcile.Config{})
	bc := broadcast.New(logx.Nop(), ad, broadcast.Config{Workers: 1, RatePerSec: 1000})
	r := NewRouter(logx.Nop(), ad, st, rec, bc, Config{
		AdminID:   adminID,
		UPIID:     "bot@upi",
		Amount:    199,
		PayeeName: "Job Alerts",
	})
	r.SetClock(func() time.Time { return time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC) })
	return r, st, ad
}

func msgFrom(chatID int64, text string) transport.Update {
	return transport.Update{
		Kind:    transport.UpdateMessage,
		Message: &transport.Message{ChatID: chatID, FromID: chatID, Text: text},
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		cmd  string
		args []string
	}{
		{"/start", "start", nil},
		{"/START", "start", nil},
		{"/broadcast@JobAlertBot hello world", "broadcast", []string{"hello", "world"}},
		{"  /addpremium 100  ", "addpremium", []string{"100"}},
		{"hello", "", nil},
		{"/", "", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.cmd {
			t.Errorf("splitCommand(%q) cmd = %q, want %q", tt.in, cmd, tt.cmd)
		}
		if len(args) != len(tt.args) {
			t.Errorf("splitCommand(%q) args = %v, want %v", tt.in, args, tt.args)
			continue
		}
		for i := range args {
			if args[i] != tt.args[i] {
				t.Errorf("splitCommand(%q) args = %v, want %v", tt.in, args, tt.args)
				break
			}
		}
	}
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msgFrom(100, "/start"))
	if !state.IsSubscriber(st, 100) {
		t.Fatal("chat should be subscribed after /start")
	}
	texts := ad.TextsTo(100)
	if len(texts) != 1 || !strings.Contains(texts[0], "✅ Subscribed") || !strings.Contains(texts[0], "100") {
		t.Errorf("start reply = %v", texts)
	}

	r.handle(ctx, msgFrom(100, "/start"))
	texts = ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "Already subscribed") {
		t.Errorf("second start reply = %q", texts[len(texts)-1])
	}

	r.handle(ctx, msgFrom(100, "/stop"))
	if state.IsSubscriber(st, 100) {
		t.Fatal("chat should be unsubscribed after /stop")
	}
	texts = ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "❌ Unsubscribed") {
		t.Errorf("stop reply = %q", texts[len(texts)-1])
	}

	r.handle(ctx, msgFrom(100, "/stop"))
	texts = ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "Not subscribed") {
		t.Errorf("second stop reply = %q", texts[len(texts)-1])
	}
}

func TestResendAllEmpty(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	r.handle(context.Background(), msgFrom(100, "/resendall"))
	texts := ad.TextsTo(100)
	if len(texts) != 1 || texts[0] != "No active jobs." {
		t.Errorf("resendall reply = %v", texts)
	}
}

func TestAddPremium(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msgFrom(adminID, "/addpremium 100"))

	// 2030-01-01 plus the 30 day grant window.
	if !state.IsPremium(st, 100, time.Date(2030, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Error("target should be premium for 30 days")
	}
	if state.IsPremium(st, 100, time.Date(2030, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("entitlement should expire after 30 days")
	}
	if !state.IsSubscriber(st, 100) {
		t.Error("grant should auto-subscribe the target")
	}

	admin := ad.TextsTo(adminID)
	if len(admin) != 1 || !strings.Contains(admin[0], "added as Premium until 2030-01-31") {
		t.Errorf("admin confirmation = %v", admin)
	}
	target := ad.TextsTo(100)
	if len(target) != 1 || !strings.Contains(target[0], "Premium user until 2030-01-31") {
		t.Errorf("target notice = %v", target)
	}
}

func TestAddPremiumBadArgs(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msgFrom(adminID, "/addpremium"))
	r.handle(ctx, msgFrom(adminID, "/addpremium notanumber"))

	texts := ad.TextsTo(adminID)
	if len(texts) != 2 {
		t.Fatalf("got %d replies, want 2: %v", len(texts), texts)
	}
	for _, txt := range texts {
		if txt != "Usage: /addpremium <chat_id>" {
			t.Errorf("reply = %q", txt)
		}
	}
}

func TestAddPremiumIgnoredForNonAdmin(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	r.handle(context.Background(), msgFrom(100, "/addpremium 100"))
	if state.IsPremium(st, 100, time.Now()) {
		t.Error("non-admin grant must not apply")
	}
	if len(ad.Sent) != 0 {
		t.Errorf("non-admin grant should be silently ignored, got %v", ad.Sent)
	}
}

func TestRemovePremium(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msgFrom(adminID, "/addpremium 100"))
	r.handle(ctx, msgFrom(adminID, "/removepremium 100"))

	if state.IsPremium(st, 100, time.Now()) {
		t.Error("target should no longer be premium")
	}
	if state.IsSubscriber(st, 100) {
		t.Error("revoke should also unsubscribe")
	}
	admin := ad.TextsTo(adminID)
	if !strings.Contains(admin[len(admin)-1], "removed from Premium") {
		t.Errorf("admin confirmation = %q", admin[len(admin)-1])
	}
	target := ad.TextsTo(100)
	if !strings.Contains(target[len(target)-1], "revoked") {
		t.Errorf("target notice = %q", target[len(target)-1])
	}
}

func TestRemovePremiumUnknownUser(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	r.handle(context.Background(), msgFrom(adminID, "/removepremium 100"))
	texts := ad.TextsTo(adminID)
	if len(texts) != 1 || texts[0] != "User 100 is not in Premium list." {
		t.Errorf("reply = %v", texts)
	}
}

func TestPremiumStatus(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, msgFrom(100, "/premiumstatus"))
	texts := ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "not subscribed") {
		t.Errorf("unknown chat reply = %q", texts[len(texts)-1])
	}

	if _, err := state.AddSubscriber(st, 100); err != nil {
		t.Fatal(err)
	}
	r.handle(ctx, msgFrom(100, "/premiumstatus"))
	texts = ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "Free user") {
		t.Errorf("free chat reply = %q", texts[len(texts)-1])
	}

	if _, err := state.GrantPremium(st, 100, time.Date(2031, time.January, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	r.handle(ctx, msgFrom(100, "/premiumstatus"))
	texts = ad.TextsTo(100)
	if !strings.Contains(texts[len(texts)-1], "Premium user") {
		t.Errorf("premium chat reply = %q", texts[len(texts)-1])
	}
}

func TestBroadcast(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	ctx := context.Background()

	if err := st.SaveSubscribers([]string{"100", "200", "bogus"}); err != nil {
		t.Fatal(err)
	}
	r.handle(ctx, msgFrom(adminID, "/broadcast hello everyone"))

	if got := ad.TextsTo(100); !reflect.DeepEqual(got, []string{"hello everyone"}) {
		t.Errorf("chat 100 got %v", got)
	}
	if got := ad.TextsTo(200); !reflect.DeepEqual(got, []string{"hello everyone"}) {
		t.Errorf("chat 200 got %v", got)
	}
	admin := ad.TextsTo(adminID)
	if len(admin) != 1 || !strings.Contains(admin[0], "Broadcast sent to 2 subscriber(s), 0 failed.") {
		t.Errorf("admin summary = %v", admin)
	}
}

func TestBroadcastNonAdmin(t *testing.T) {
	t.Parallel()
	r, st, ad := newTestRouter(t)
	if err := st.SaveSubscribers([]string{"200"}); err != nil {
		t.Fatal(err)
	}
	r.handle(context.Background(), msgFrom(100, "/broadcast spam"))
	texts := ad.TextsTo(100)
	if len(texts) != 1 || !strings.Contains(texts[0], "not allowed") {
		t.Errorf("reply = %v", texts)
	}
	if got := ad.TextsTo(200); len(got) != 0 {
		t.Errorf("nothing should fan out, got %v", got)
	}
}

func TestSubscribeSendsInstructionsAndQR(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	r.handle(context.Background(), msgFrom(100, "/subscribe"))

	texts := ad.TextsTo(100)
	if len(texts) != 1 {
		t.Fatalf("got %d texts, want 1: %v", len(texts), texts)
	}
	if !strings.Contains(texts[0], "bot@upi") || !strings.Contains(texts[0], "₹199") {
		t.Errorf("instructions = %q", texts[0])
	}
	if len(ad.Photos) != 1 {
		t.Fatalf("got %d photos, want the QR", len(ad.Photos))
	}
	if len(ad.Photos[0].Photo.Data) == 0 {
		t.Error("QR photo should carry PNG bytes")
	}
}

func TestCallbacks(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, transport.Update{
		Kind:     transport.UpdateCallback,
		Callback: &transport.Callback{ID: "cb1", ChatID: 100, FromID: 100, Data: "copy_upi"},
	})
	if len(ad.Answered) != 1 || ad.Answered[0] != "cb1" {
		t.Errorf("answered = %v", ad.Answered)
	}
	texts := ad.TextsTo(100)
	if len(texts) != 1 || !strings.Contains(texts[0], "<code>bot@upi</code>") {
		t.Errorf("copy_upi reply = %v", texts)
	}

	r.handle(ctx, transport.Update{
		Kind:     transport.UpdateCallback,
		Callback: &transport.Callback{ID: "cb2", ChatID: 100, FromID: 100, Data: "subscribe"},
	})
	if len(ad.Photos) != 1 {
		t.Errorf("subscribe callback should send the QR, got %d photos", len(ad.Photos))
	}
}

func TestPhotoForwardedToAdmin(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	r.handle(context.Background(), transport.Update{
		Kind: transport.UpdatePhoto,
		Photo: &transport.Photo{
			ChatID:       100,
			FromID:       100,
			FromName:     "Asha",
			FromUsername: "asha",
			FileID:       "file-1",
		},
	})

	if len(ad.Photos) != 1 {
		t.Fatalf("got %d photos, want 1", len(ad.Photos))
	}
	fwd := ad.Photos[0]
	if fwd.ChatID != adminID || fwd.Photo.FileID != "file-1" {
		t.Errorf("forward = %+v", fwd)
	}
	if !strings.Contains(fwd.Photo.Caption, "/addpremium 100") {
		t.Errorf("caption = %q", fwd.Photo.Caption)
	}
	texts := ad.TextsTo(100)
	if len(texts) != 1 || !strings.Contains(texts[0], "Waiting for admin approval") {
		t.Errorf("ack = %v", texts)
	}
}

func TestPhotoFromAdminIgnored(t *testing.T) {
	t.Parallel()
	r, _, ad := newTestRouter(t)
	r.handle(context.Background(), transport.Update{
		Kind:  transport.UpdatePhoto,
		Photo: &transport.Photo{ChatID: adminID, FromID: adminID, FileID: "file-2"},
	})
	if len(ad.Photos) != 0 || len(ad.Sent) != 0 {
		t.Errorf("admin photos should be ignored, got %v / %v", ad.Photos, ad.Sent)
	}
}

func TestUPIQRLink(t *testing.T) {
	t.Parallel()
	png, err := upiQR("bot@upi", "Job Alerts", 199, "Premium")
	if err != nil {
		t.Fatalf("upiQR: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty PNG")
	}
	// PNG signature.
	if string(png[1:4]) != "PNG" {
		t.Errorf("not a PNG: % x", png[:8])
	}
}
