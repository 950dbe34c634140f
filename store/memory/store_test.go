package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/reconcile"
	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/types"
)

func TestProfileCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &profile.Profile{
		ID:          "100",
		DisplayName: "First",
		Balance:     types.SYP(0),
	}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := s.CreateProfile(ctx, p); !errors.Is(err, reconcile.ErrProfileExists) {
		t.Errorf("duplicate create: got %v, want ErrProfileExists", err)
	}

	got, err := s.GetProfile(ctx, "100")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.DisplayName != "First" {
		t.Errorf("DisplayName: got %q", got.DisplayName)
	}

	// Reads return copies: mutating the result must not leak.
	got.DisplayName = "mutated"
	again, err := s.GetProfile(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	if again.DisplayName != "First" {
		t.Error("GetProfile leaked a shared pointer")
	}

	got.DisplayName = "Second"
	if err := s.UpdateProfile(ctx, got); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	again, err = s.GetProfile(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	if again.DisplayName != "Second" {
		t.Errorf("after update: got %q", again.DisplayName)
	}

	if _, err := s.GetProfile(ctx, "missing"); !errors.Is(err, reconcile.ErrProfileNotFound) {
		t.Errorf("missing profile: got %v, want ErrProfileNotFound", err)
	}
	if err := s.UpdateProfile(ctx, &profile.Profile{ID: "missing"}); !errors.Is(err, reconcile.ErrProfileNotFound) {
		t.Errorf("update missing: got %v, want ErrProfileNotFound", err)
	}
}

func TestListProfilesWindow(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, pid := range []string{"a", "b", "c"} {
		if err := s.CreateProfile(ctx, &profile.Profile{ID: pid}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListProfiles(ctx, profile.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d profiles, want 3", len(all))
	}
	if all[0].ID != "a" || all[2].ID != "c" {
		t.Errorf("unexpected order: %v %v %v", all[0].ID, all[1].ID, all[2].ID)
	}

	page, err := s.ListProfiles(ctx, profile.ListOpts{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page: got %+v, want just b", page)
	}
}

func TestOrderHandleLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	o := &request.Order{
		ID:        id.NewOrderID(),
		ProfileID: "100",
		Status:    request.StatusPending,
		Handle:    "msg-7",
	}
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := s.FindOrderByHandle(ctx, "msg-7")
	if err != nil {
		t.Fatalf("FindOrderByHandle: %v", err)
	}
	if got.ID != o.ID {
		t.Errorf("got order %v, want %v", got.ID, o.ID)
	}

	if _, err := s.FindOrderByHandle(ctx, "unknown"); !errors.Is(err, reconcile.ErrOrderNotFound) {
		t.Errorf("unknown handle: got %v, want ErrOrderNotFound", err)
	}
	if _, err := s.FindOrderByHandle(ctx, ""); !errors.Is(err, reconcile.ErrOrderNotFound) {
		t.Errorf("empty handle: got %v, want ErrOrderNotFound", err)
	}
}

func TestChargeHandleLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	c := &request.Charge{
		ID:              id.NewChargeID(),
		ProfileID:       "100",
		RequestedAmount: types.SYP(500),
		Status:          request.StatusPending,
		Handle:          "msg-9",
	}
	if err := s.CreateCharge(ctx, c); err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}

	got, err := s.FindChargeByHandle(ctx, "msg-9")
	if err != nil {
		t.Fatalf("FindChargeByHandle: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("got charge %v, want %v", got.ID, c.ID)
	}

	if _, err := s.FindChargeByHandle(ctx, ""); !errors.Is(err, reconcile.ErrChargeNotFound) {
		t.Errorf("empty handle: got %v, want ErrChargeNotFound", err)
	}
}

func TestListOrdersUnresolvedFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	open := &request.Order{ID: id.NewOrderID(), ProfileID: "100", Status: request.StatusPending}
	done := &request.Order{ID: id.NewOrderID(), ProfileID: "100", Status: request.StatusRejected, Resolved: true}
	other := &request.Order{ID: id.NewOrderID(), ProfileID: "200", Status: request.StatusPending}
	for _, o := range []*request.Order{open, done, other} {
		if err := s.CreateOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListOrders(ctx, "100", request.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all orders: got %d, want 2", len(all))
	}

	unresolved, err := s.ListOrders(ctx, "100", request.ListOpts{Unresolved: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 1 || unresolved[0].ID != open.ID {
		t.Errorf("unresolved: got %d, want just the pending order", len(unresolved))
	}
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	s := New()

	n1 := &notification.Notification{ID: id.NewNotificationID(), ProfileID: "100", Text: "first"}
	n2 := &notification.Notification{ID: id.NewNotificationID(), ProfileID: "100", Text: "second"}
	for _, n := range []*notification.Notification{n1, n2} {
		if err := s.AppendNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.MarkNotificationRead(ctx, n1.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}

	unread, err := s.ListNotifications(ctx, "100", notification.ListOpts{UnreadOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].Text != "second" {
		t.Errorf("unread: got %d, want just the second", len(unread))
	}

	if err := s.MarkNotificationRead(ctx, id.NewNotificationID()); !errors.Is(err, reconcile.ErrNotificationNotFound) {
		t.Errorf("mark missing: got %v, want ErrNotificationNotFound", err)
	}
}

func TestCursorMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New()

	cur, err := s.GetCursor(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if cur != 0 {
		t.Errorf("fresh cursor: got %d, want 0", cur)
	}

	if err := s.SetCursor(ctx, "admin", 5); err != nil {
		t.Fatal(err)
	}
	// Backward writes are ignored.
	if err := s.SetCursor(ctx, "admin", 3); err != nil {
		t.Fatal(err)
	}
	cur, err = s.GetCursor(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if cur != 5 {
		t.Errorf("cursor: got %d, want 5", cur)
	}

	// Channels are independent.
	other, err := s.GetCursor(ctx, "support")
	if err != nil {
		t.Fatal(err)
	}
	if other != 0 {
		t.Errorf("other channel: got %d, want 0", other)
	}
}
