package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/sender"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// countingSender records how many sends it performed; fail makes every send
// error out.
type countingSender struct {
	calls atomic.Int32
	fail  bool
}

func (s *countingSender) Send(_ context.Context, _ *domain.Notification) (*sender.SendResult, error) {
	s.calls.Add(1)
	if s.fail {
		return nil, fmt.Errorf("%w: provider down", domain.ErrSenderFailure)
	}
	return &sender.SendResult{Delivered: true, ProviderMsgID: "msg-1"}, nil
}

func newTestDispatcher(st store.Store, senders *sender.Registry) *Dispatcher {
	return New(st, senders, sender.NewChannelLimiters(1000), zap.NewNop(), Hooks{})
}

func seedPending(t *testing.T, m *store.MockStore, id, tenantID string, channels ...domain.Channel) {
	t.Helper()
	now := time.Now().UTC()
	err := m.Create(context.Background(), &domain.Notification{
		ID:          id,
		TenantID:    tenantID,
		RecipientID: "user-1",
		Type:        domain.TypeWelcome,
		Title:       "Welcome",
		Message:     "Your card is ready.",
		Priority:    domain.PriorityHigh,
		Channels:    channels,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail, domain.ChannelPush)

	email := &countingSender{}
	push := &countingSender{}
	senders := sender.NewRegistry().
		Bind(domain.ChannelEmail, email).
		Bind(domain.ChannelPush, push)
	d := newTestDispatcher(m, senders)

	res := d.Dispatch(context.Background(), "n1", "tenant-a")
	if !res.OK() {
		t.Fatalf("Dispatch() = %+v, want success", res)
	}
	if email.calls.Load() != 1 || push.calls.Load() != 1 {
		t.Errorf("sends = email:%d push:%d, want 1 each", email.calls.Load(), push.calls.Load())
	}

	n, _ := m.Get(context.Background(), "n1", "tenant-a")
	if n.Status != domain.StatusSent {
		t.Errorf("status = %s, want sent", n.Status)
	}
}

func TestDispatchMissingNotificationWritesNothing(t *testing.T) {
	m := store.NewMockStore()
	d := newTestDispatcher(m, sender.NewRegistry())

	res := d.Dispatch(context.Background(), "ghost", "tenant-a")
	if res.OK() || res.Kind != task.KindNotFound {
		t.Fatalf("Dispatch() = %+v, want not_found failure", res)
	}
	if m.WriteCount != 0 {
		t.Errorf("WriteCount = %d, want 0 for a missing notification", m.WriteCount)
	}
}

func TestDispatchWrongTenantIsNotFound(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail)
	d := newTestDispatcher(m, sender.NewRegistry())
	writesBefore := m.WriteCount

	res := d.Dispatch(context.Background(), "n1", "tenant-b")
	if res.OK() || res.Kind != task.KindNotFound {
		t.Fatalf("cross-tenant Dispatch() = %+v, want not_found failure", res)
	}
	if m.WriteCount != writesBefore {
		t.Error("cross-tenant dispatch must not write")
	}
}

func TestDispatchAllChannelsFail(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail)

	senders := sender.NewRegistry().Bind(domain.ChannelEmail, &countingSender{fail: true})
	d := newTestDispatcher(m, senders)

	res := d.Dispatch(context.Background(), "n1", "tenant-a")
	if res.OK() || res.Kind != task.KindSenderFailure {
		t.Fatalf("Dispatch() = %+v, want sender_failure", res)
	}

	n, _ := m.Get(context.Background(), "n1", "tenant-a")
	if n.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", n.Status)
	}
	if n.ErrorMessage == nil {
		t.Error("failed notification should carry the error message")
	}
}

func TestDispatchPartialChannelFailureStillSends(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail, domain.ChannelPush)

	senders := sender.NewRegistry().
		Bind(domain.ChannelEmail, &countingSender{fail: true}).
		Bind(domain.ChannelPush, &countingSender{})
	d := newTestDispatcher(m, senders)

	res := d.Dispatch(context.Background(), "n1", "tenant-a")
	if !res.OK() {
		t.Fatalf("Dispatch() = %+v, one delivered channel should be a success", res)
	}

	n, _ := m.Get(context.Background(), "n1", "tenant-a")
	if n.Status != domain.StatusSent {
		t.Errorf("status = %s, want sent when any channel delivered", n.Status)
	}
}

func TestDispatchTwiceSendsOnce(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail)

	email := &countingSender{}
	d := newTestDispatcher(m, sender.NewRegistry().Bind(domain.ChannelEmail, email))

	first := d.Dispatch(context.Background(), "n1", "tenant-a")
	second := d.Dispatch(context.Background(), "n1", "tenant-a")
	if !first.OK() || !second.OK() {
		t.Fatalf("results = %+v / %+v, want both success", first, second)
	}
	if email.calls.Load() != 1 {
		t.Errorf("sender called %d times, want exactly 1", email.calls.Load())
	}
}

func TestDispatchViaChannelSubset(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelEmail, domain.ChannelPush)

	email := &countingSender{}
	push := &countingSender{}
	d := newTestDispatcher(m, sender.NewRegistry().
		Bind(domain.ChannelEmail, email).
		Bind(domain.ChannelPush, push))

	res := d.DispatchVia(context.Background(), "n1", "tenant-a", []domain.Channel{domain.ChannelEmail})
	if !res.OK() {
		t.Fatalf("DispatchVia() = %+v, want success", res)
	}
	if email.calls.Load() != 1 || push.calls.Load() != 0 {
		t.Errorf("sends = email:%d push:%d, want email only", email.calls.Load(), push.calls.Load())
	}
}

func TestDispatchViaDisjointSubset(t *testing.T) {
	m := store.NewMockStore()
	seedPending(t, m, "n1", "tenant-a", domain.ChannelPush)
	d := newTestDispatcher(m, sender.NewRegistry())

	res := d.DispatchVia(context.Background(), "n1", "tenant-a", []domain.Channel{domain.ChannelEmail})
	if res.OK() || res.Kind != task.KindValidation {
		t.Errorf("disjoint subset = %+v, want validation failure", res)
	}
}

func TestDispatchCancelledSkips(t *testing.T) {
	m := store.NewMockStore()
	now := time.Now().UTC()
	_ = m.Create(context.Background(), &domain.Notification{
		ID: "n1", TenantID: "tenant-a", RecipientID: "user-1",
		Type: domain.TypeSystem, Title: "t", Message: "m",
		Priority: domain.PriorityLow,
		Channels: []domain.Channel{domain.ChannelEmail},
		Status:   domain.StatusCancelled,
		CreatedAt: now, UpdatedAt: now,
	})

	email := &countingSender{}
	d := newTestDispatcher(m, sender.NewRegistry().Bind(domain.ChannelEmail, email))

	res := d.Dispatch(context.Background(), "n1", "tenant-a")
	if !res.OK() {
		t.Fatalf("Dispatch() on cancelled = %+v, want benign success", res)
	}
	if email.calls.Load() != 0 {
		t.Error("cancelled notification must never reach a sender")
	}
}
