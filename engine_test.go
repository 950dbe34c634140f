package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/reconcile"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/source"
	"github.com/xraph/reconcile/store/memory"
	"github.com/xraph/reconcile/types"

	mirrormem "github.com/xraph/reconcile/mirror/memory"
)

// fakeSource serves scripted messages per channel. With ignoreCursor
// set it re-serves everything on every poll, modeling at-least-once
// redelivery.
type fakeSource struct {
	mu           sync.Mutex
	msgs         map[string][]source.RawMessage
	ignoreCursor bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{msgs: make(map[string][]source.RawMessage)}
}

func (f *fakeSource) add(channel string, msgs ...source.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[channel] = append(f.msgs[channel], msgs...)
}

func (f *fakeSource) Poll(_ context.Context, channel string, cur source.Cursor) ([]source.RawMessage, source.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []source.RawMessage
	next := cur
	for _, m := range f.msgs[channel] {
		if !f.ignoreCursor && m.Cursor <= cur {
			continue
		}
		out = append(out, m)
		if m.Cursor > next {
			next = m.Cursor
		}
	}
	return out, next, nil
}

var _ source.Source = (*fakeSource)(nil)

func newTestEngine(t *testing.T, src source.Source, opts ...reconcile.Option) (*reconcile.Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	e := reconcile.New(st, src, opts...)
	return e, st
}

func registerProfile(t *testing.T, e *reconcile.Engine, profileID string) {
	t.Helper()
	p := &profile.Profile{ID: profileID, DisplayName: "Test User"}
	if err := e.RegisterProfile(context.Background(), p); err != nil {
		t.Fatalf("RegisterProfile: %v", err)
	}
}

func TestChargeApprovalCreditsBalance(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, st := newTestEngine(t, src)

	registerProfile(t, e, "555")

	c, err := e.CreateCharge(ctx, "555", types.SYP(1000), "cash")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h1"); err != nil {
		t.Fatalf("RegisterChargeHandle: %v", err)
	}

	src.add("admin", source.RawMessage{
		Handle:    "900",
		RepliesTo: "h1",
		Text:      "تم, الرصيد: 1000 للرقم الشخصي 555",
		Cursor:    1,
	})

	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	p, err := e.Profile(ctx, "555")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.Equal(types.SYP(1000)) {
		t.Errorf("balance: got %v, want %v", p.Balance, types.SYP(1000))
	}
	if !p.LifetimeTopup.Equal(types.SYP(1000)) {
		t.Errorf("lifetime topup: got %v, want %v", p.LifetimeTopup, types.SYP(1000))
	}

	got, err := e.Charge(ctx, c.ID)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if got.Status != request.StatusCredited {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusCredited)
	}
	if !got.Resolved {
		t.Error("charge should be resolved")
	}

	ns, err := e.Notifications(ctx, "555", notification.ListOpts{})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(ns))
	}

	cur, err := st.GetCursor(ctx, "admin")
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if cur != 1 {
		t.Errorf("cursor: got %d, want 1", cur)
	}
}

func TestRedeliveryCreditsOnce(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.ignoreCursor = true
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "555")

	c, err := e.CreateCharge(ctx, "555", types.SYP(1500), "transfer")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h9"); err != nil {
		t.Fatalf("RegisterChargeHandle: %v", err)
	}

	src.add("admin", source.RawMessage{
		Handle:    "901",
		RepliesTo: "h9",
		Text:      "تم, الرصيد: 1500 للرقم الشخصي 555",
		Cursor:    7,
	})

	// The same reply is delivered on every poll. Only the first
	// application may move money.
	for i := 0; i < 5; i++ {
		if err := e.Drain(ctx, "admin"); err != nil {
			t.Fatalf("Drain %d: %v", i, err)
		}
	}

	p, err := e.Profile(ctx, "555")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.Equal(types.SYP(1500)) {
		t.Errorf("balance after redelivery: got %v, want %v", p.Balance, types.SYP(1500))
	}

	ns, err := e.Notifications(ctx, "555", notification.ListOpts{})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Errorf("notifications after redelivery: got %d, want 1", len(ns))
	}
}

func TestRejectReply(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "777")

	c, err := e.CreateCharge(ctx, "777", types.SYP(2000), "cash")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h2"); err != nil {
		t.Fatalf("RegisterChargeHandle: %v", err)
	}

	src.add("admin", source.RawMessage{RepliesTo: "h2", Text: "مرفوض", Cursor: 1})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err := e.Charge(ctx, c.ID)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if got.Status != request.StatusRejected {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusRejected)
	}
	if !got.Resolved {
		t.Error("charge should be resolved")
	}

	p, err := e.Profile(ctx, "777")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.IsZero() {
		t.Errorf("balance: got %v, want zero", p.Balance)
	}
}

func TestApproveWithoutAmount(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "777")

	c, err := e.CreateCharge(ctx, "777", types.SYP(2000), "cash")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h3"); err != nil {
		t.Fatalf("RegisterChargeHandle: %v", err)
	}

	src.add("admin", source.RawMessage{RepliesTo: "h3", Text: "تم", Cursor: 1})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err := e.Charge(ctx, c.ID)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if got.Status != request.StatusApprovedNoCredit {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusApprovedNoCredit)
	}

	p, err := e.Profile(ctx, "777")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.IsZero() {
		t.Errorf("balance: got %v, want zero", p.Balance)
	}
}

func TestChargeCreditRequiresRestatedProfile(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "888")

	c, err := e.CreateCharge(ctx, "888", types.SYP(1000), "cash")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h4"); err != nil {
		t.Fatalf("RegisterChargeHandle: %v", err)
	}

	// Amount present but the profile ID is not restated in the reply.
	// The charge resolves approved without moving money.
	src.add("admin", source.RawMessage{RepliesTo: "h4", Text: "تم, الرصيد: 1000", Cursor: 1})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err := e.Charge(ctx, c.ID)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if got.Status != request.StatusApprovedNoCredit {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusApprovedNoCredit)
	}

	p, err := e.Profile(ctx, "888")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.IsZero() {
		t.Errorf("balance: got %v, want zero", p.Balance)
	}
}

func TestFreeTextStatusThenReject(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "555")

	o, err := e.CreateOrder(ctx, "555", "recharge", "unit 42", request.PayCash, types.Money{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := e.RegisterOrderHandle(ctx, o.ID, "h5"); err != nil {
		t.Fatalf("RegisterOrderHandle: %v", err)
	}

	src.add("admin", source.RawMessage{RepliesTo: "h5", Text: "جاري المراجعة", Cursor: 1})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err := e.Order(ctx, o.ID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Status != "جاري المراجعة" {
		t.Errorf("status: got %q, want the free text verbatim", got.Status)
	}
	if got.Resolved {
		t.Error("free-text status must not resolve the order")
	}
	if !got.Replied {
		t.Error("order should be marked replied")
	}

	// A later terminal reply on the same handle still lands.
	src.add("admin", source.RawMessage{RepliesTo: "h5", Text: "مرفوض", Cursor: 2})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err = e.Order(ctx, o.ID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Status != request.StatusRejected {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusRejected)
	}
	if !got.Resolved {
		t.Error("order should be resolved after the terminal reply")
	}
}

func TestOrderApprovalWithCredit(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	registerProfile(t, e, "555")

	o, err := e.CreateOrder(ctx, "555", "refund", "", request.PayCash, types.Money{})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := e.RegisterOrderHandle(ctx, o.ID, "h6"); err != nil {
		t.Fatalf("RegisterOrderHandle: %v", err)
	}

	// Order credits do not require the profile ID to be restated.
	src.add("admin", source.RawMessage{RepliesTo: "h6", Text: "تم الرصيد 2,500", Cursor: 1})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got, err := e.Order(ctx, o.ID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Status != request.StatusCompleted {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusCompleted)
	}

	p, err := e.Profile(ctx, "555")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !p.Balance.Equal(types.SYP(2500)) {
		t.Errorf("balance: got %v, want %v", p.Balance, types.SYP(2500))
	}
}

func TestUnmatchedReplySettles(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, st := newTestEngine(t, src)

	registerProfile(t, e, "555")

	src.add("admin",
		source.RawMessage{RepliesTo: "nope", Text: "تم", Cursor: 1},
		source.RawMessage{Text: "not a reply at all", Cursor: 2},
	)
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	cur, err := st.GetCursor(ctx, "admin")
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if cur != 2 {
		t.Errorf("cursor: got %d, want 2", cur)
	}

	ns, err := e.Notifications(ctx, "555", notification.ListOpts{})
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(ns) != 0 {
		t.Errorf("notifications: got %d, want 0", len(ns))
	}
}

func TestSpend(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, newFakeSource())

	registerProfile(t, e, "555")

	// Seed a balance directly.
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(1000)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	balance, err := e.Spend(ctx, "555", types.SYP(300))
	if err != nil {
		t.Fatalf("Spend: %v", err)
	}
	if !balance.Equal(types.SYP(700)) {
		t.Errorf("balance: got %v, want %v", balance, types.SYP(700))
	}

	if _, err := e.Spend(ctx, "555", types.SYP(900)); !errors.Is(err, reconcile.ErrInsufficientBalance) {
		t.Errorf("overdraft: got %v, want ErrInsufficientBalance", err)
	}
	if _, err := e.Spend(ctx, "555", types.SYP(0)); !errors.Is(err, reconcile.ErrInvalidAmount) {
		t.Errorf("zero spend: got %v, want ErrInvalidAmount", err)
	}
}

func TestOrderPaidFromBalance(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, newFakeSource())

	registerProfile(t, e, "555")
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(1000)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	o, err := e.CreateOrder(ctx, "555", "bundle", "", request.PayFromBalance, types.SYP(400))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !o.PaidAmount.Equal(types.SYP(400)) {
		t.Errorf("paid amount: got %v, want %v", o.PaidAmount, types.SYP(400))
	}

	p, err = st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Balance.Equal(types.SYP(600)) {
		t.Errorf("balance after debit: got %v, want %v", p.Balance, types.SYP(600))
	}

	if _, err := e.CreateOrder(ctx, "555", "bundle", "", request.PayFromBalance, types.SYP(5000)); !errors.Is(err, reconcile.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestHandleSetOnce(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, newFakeSource())

	registerProfile(t, e, "555")
	c, err := e.CreateCharge(ctx, "555", types.SYP(100), "cash")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.RegisterChargeHandle(ctx, c.ID, "h7"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h7"); err != nil {
		t.Fatalf("idempotent rebind: %v", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "other"); !errors.Is(err, reconcile.ErrHandleAlreadySet) {
		t.Errorf("rebind to different handle: got %v, want ErrHandleAlreadySet", err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, ""); err == nil {
		t.Error("empty handle should be rejected")
	}
}

func TestRegisterProfileMergesContactOnly(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, newFakeSource())

	registerProfile(t, e, "555")
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(900)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	again := &profile.Profile{ID: "555", DisplayName: "Renamed", Phone: "0999"}
	if err := e.RegisterProfile(ctx, again); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.DisplayName != "Renamed" || again.Phone != "0999" {
		t.Errorf("contact fields not merged: %+v", again)
	}
	if !again.Balance.Equal(types.SYP(900)) {
		t.Errorf("balance must survive re-registration: got %v", again.Balance)
	}

	if err := e.RegisterProfile(ctx, &profile.Profile{}); err == nil {
		t.Error("empty profile ID should be rejected")
	}
}

func TestConcurrentSpendAndCredit(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	e, st := newTestEngine(t, src)

	registerProfile(t, e, "555")
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(1000)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	c, err := e.CreateCharge(ctx, "555", types.SYP(500), "cash")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "h8"); err != nil {
		t.Fatal(err)
	}
	src.add("admin", source.RawMessage{
		RepliesTo: "h8",
		Text:      "تم, الرصيد: 500 للرقم الشخصي 555",
		Cursor:    1,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := e.Drain(ctx, "admin"); err != nil {
			t.Errorf("Drain: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := e.Spend(ctx, "555", types.SYP(200)); err != nil {
			t.Errorf("Spend: %v", err)
		}
	}()
	wg.Wait()

	p, err = st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Balance.Equal(types.SYP(1300)) {
		t.Errorf("balance: got %v, want %v", p.Balance, types.SYP(1300))
	}
}

// mirrorWatcher records mirror sync outcomes.
type mirrorWatcher struct {
	synced   chan types.Money
	degraded chan error
}

func (w *mirrorWatcher) Name() string { return "mirror-watcher" }

func (w *mirrorWatcher) OnMirrorSynced(_ context.Context, _ string, balance types.Money) error {
	w.synced <- balance
	return nil
}

func (w *mirrorWatcher) OnMirrorDegraded(_ context.Context, _ string, _ types.Money, err error) error {
	w.degraded <- err
	return nil
}

func TestMirrorSyncAndDegrade(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	m := mirrormem.New()
	w := &mirrorWatcher{
		synced:   make(chan types.Money, 4),
		degraded: make(chan error, 4),
	}
	e, st := newTestEngine(t, src,
		reconcile.WithMirror(m),
		reconcile.WithMirrorRetry(2, time.Millisecond),
		reconcile.WithHook(w),
	)

	registerProfile(t, e, "555")

	c, err := e.CreateCharge(ctx, "555", types.SYP(1000), "cash")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterChargeHandle(ctx, c.ID, "hm"); err != nil {
		t.Fatal(err)
	}
	src.add("admin", source.RawMessage{
		RepliesTo: "hm",
		Text:      "تم, الرصيد: 1000 للرقم الشخصي 555",
		Cursor:    1,
	})
	if err := e.Drain(ctx, "admin"); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	select {
	case balance := <-w.synced:
		if !balance.Equal(types.SYP(1000)) {
			t.Errorf("synced balance: got %v, want %v", balance, types.SYP(1000))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirror sync")
	}

	got, err := m.ReadBalance(ctx, "555")
	if err != nil {
		t.Fatalf("ReadBalance: %v", err)
	}
	if !got.Equal(types.SYP(1000)) {
		t.Errorf("mirrored balance: got %v, want %v", got, types.SYP(1000))
	}

	// A failing mirror degrades instead of unwinding the local commit.
	m.SetFailWrites(errors.New("mirror down"))
	if _, err := e.Spend(ctx, "555", types.SYP(100)); err != nil {
		t.Fatalf("Spend: %v", err)
	}

	select {
	case <-w.degraded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for degraded event")
	}

	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Balance.Equal(types.SYP(900)) {
		t.Errorf("local balance: got %v, want %v", p.Balance, types.SYP(900))
	}
}

func TestProfileReconcilesAgainstMirror(t *testing.T) {
	ctx := context.Background()
	m := mirrormem.New()
	e, st := newTestEngine(t, newFakeSource(), reconcile.WithMirror(m))

	registerProfile(t, e, "555")
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(3000)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Mirror ahead of local: the larger value wins and is persisted.
	if err := m.UpsertBalance(ctx, "555", types.SYP(5000)); err != nil {
		t.Fatal(err)
	}
	got, err := e.Profile(ctx, "555")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !got.Balance.Equal(types.SYP(5000)) {
		t.Errorf("merged balance: got %v, want %v", got.Balance, types.SYP(5000))
	}
	stored, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Balance.Equal(types.SYP(5000)) {
		t.Errorf("raised balance not persisted: got %v", stored.Balance)
	}

	// Mirror behind local: local wins.
	if err := m.UpsertBalance(ctx, "555", types.SYP(100)); err != nil {
		t.Fatal(err)
	}
	got, err = e.Profile(ctx, "555")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !got.Balance.Equal(types.SYP(5000)) {
		t.Errorf("local must win over a stale mirror: got %v", got.Balance)
	}
}

// slowMirror delays writes so shutdown can overlap an in-flight push.
type slowMirror struct {
	inner *mirrormem.Mirror
	delay time.Duration
}

func (m *slowMirror) UpsertBalance(ctx context.Context, profileID string, balance types.Money) error {
	time.Sleep(m.delay)
	return m.inner.UpsertBalance(ctx, profileID, balance)
}

func (m *slowMirror) ReadBalance(ctx context.Context, profileID string) (types.Money, error) {
	return m.inner.ReadBalance(ctx, profileID)
}

func TestStopWaitsForMirrorPushes(t *testing.T) {
	ctx := context.Background()
	inner := mirrormem.New()
	m := &slowMirror{inner: inner, delay: 50 * time.Millisecond}
	e, st := newTestEngine(t, newFakeSource(), reconcile.WithMirror(m))

	registerProfile(t, e, "555")
	p, err := st.GetProfile(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	p.Balance = types.SYP(1000)
	if err := st.UpdateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Spend(ctx, "555", types.SYP(300)); err != nil {
		t.Fatalf("Spend: %v", err)
	}

	// Stop must block until the in-flight push lands.
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	got, err := inner.ReadBalance(ctx, "555")
	if err != nil {
		t.Fatalf("ReadBalance after Stop: %v", err)
	}
	if !got.Equal(types.SYP(700)) {
		t.Errorf("mirrored balance: got %v, want %v", got, types.SYP(700))
	}

	// A mutation after Stop must not start a new push (and must not
	// panic the push tracking).
	if _, err := e.Spend(ctx, "555", types.SYP(100)); err != nil {
		t.Fatalf("Spend after Stop: %v", err)
	}
	time.Sleep(2 * m.delay)
	got, err = inner.ReadBalance(ctx, "555")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(types.SYP(700)) {
		t.Errorf("mirror moved after Stop: got %v, want %v", got, types.SYP(700))
	}
}

func TestConcurrentHandleRegistration(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, newFakeSource())
	registerProfile(t, e, "555")

	t.Run("charge", func(t *testing.T) {
		c, err := e.CreateCharge(ctx, "555", types.SYP(100), "cash")
		if err != nil {
			t.Fatal(err)
		}

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for _, handle := range []string{"left", "right"} {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()
				errs <- e.RegisterChargeHandle(ctx, c.ID, h)
			}(handle)
		}
		wg.Wait()
		close(errs)

		var failures int
		for err := range errs {
			if err != nil {
				failures++
				if !errors.Is(err, reconcile.ErrHandleAlreadySet) {
					t.Errorf("got %v, want ErrHandleAlreadySet", err)
				}
			}
		}
		if failures != 1 {
			t.Fatalf("got %d failed registrations, want exactly 1", failures)
		}

		got, err := e.Charge(ctx, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Handle != "left" && got.Handle != "right" {
			t.Errorf("stored handle %q is neither contender", got.Handle)
		}
	})

	t.Run("order", func(t *testing.T) {
		o, err := e.CreateOrder(ctx, "555", "bundle", "", request.PayCash, types.Money{})
		if err != nil {
			t.Fatal(err)
		}

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for _, handle := range []string{"left", "right"} {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()
				errs <- e.RegisterOrderHandle(ctx, o.ID, h)
			}(handle)
		}
		wg.Wait()
		close(errs)

		var failures int
		for err := range errs {
			if err != nil {
				failures++
				if !errors.Is(err, reconcile.ErrHandleAlreadySet) {
					t.Errorf("got %v, want ErrHandleAlreadySet", err)
				}
			}
		}
		if failures != 1 {
			t.Fatalf("got %d failed registrations, want exactly 1", failures)
		}
	})
}
