package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/sender"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Hooks carries the per-channel metric callbacks injected by main.
type Hooks struct {
	OnDelivered func(ch domain.Channel)
	OnFailed    func(ch domain.Channel)
}

// Dispatcher executes the per-notification send: load the record, invoke the
// sender for each requested channel, record the outcome with exactly one
// store write per attempt. It never retries within a call — failures are
// surfaced in the structured result for the caller's retry policy.
type Dispatcher struct {
	store   store.Store
	senders *sender.Registry
	limiter *sender.ChannelLimiters
	logger  *zap.Logger
	hooks   Hooks
}

func New(
	st store.Store,
	senders *sender.Registry,
	limiter *sender.ChannelLimiters,
	logger *zap.Logger,
	hooks Hooks,
) *Dispatcher {
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(domain.Channel) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Channel) {}
	}
	return &Dispatcher{store: st, senders: senders, limiter: limiter, logger: logger, hooks: hooks}
}

// Dispatch sends a notification over every channel it requests.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID, tenantID string) task.Result {
	return d.DispatchVia(ctx, notificationID, tenantID, nil)
}

// DispatchVia is Dispatch restricted to a channel subset (nil means all of
// the notification's channels). The email queue's task body uses this to
// send the email leg only.
//
// A missing (id, tenant) pair is a terminal, non-retriable failure returned
// as a structured result with zero store writes. An already-dispatched
// notification short-circuits without a second send: together with the
// store's status guard this gives at-most-once externally visible delivery
// per channel.
func (d *Dispatcher) DispatchVia(ctx context.Context, notificationID, tenantID string, only []domain.Channel) task.Result {
	log := d.logger.With(
		zap.String("notification_id", notificationID),
		zap.String("tenant_id", tenantID),
	)

	n, err := d.store.Get(ctx, notificationID, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Error("notification not found")
			return task.Failure(task.KindNotFound, "notification %s not found", notificationID)
		}
		return task.FromError(fmt.Errorf("load notification: %w", err))
	}

	switch n.Status {
	case domain.StatusSent, domain.StatusDelivered, domain.StatusRead:
		log.Debug("notification already dispatched; skipping")
		return task.Success("already dispatched").With("notification_id", n.ID)
	case domain.StatusCancelled:
		log.Debug("notification cancelled before dispatch; skipping")
		return task.Success("cancelled before dispatch").With("notification_id", n.ID)
	}

	channels := n.Channels
	if len(only) > 0 {
		channels = intersect(n.Channels, only)
	}
	if len(channels) == 0 {
		return task.Failure(task.KindValidation, "notification %s requests no deliverable channel", n.ID)
	}

	var sentChannels, failedChannels []domain.Channel
	var sendErrs []string
	for _, ch := range channels {
		if err := d.sendOne(ctx, n, ch); err != nil {
			failedChannels = append(failedChannels, ch)
			sendErrs = append(sendErrs, fmt.Sprintf("%s: %s", ch, err))
			d.hooks.OnFailed(ch)
			log.Warn("channel send failed", zap.String("channel", string(ch)), zap.Error(err))
			continue
		}
		sentChannels = append(sentChannels, ch)
		d.hooks.OnDelivered(ch)
	}

	now := time.Now().UTC()
	if len(sentChannels) > 0 {
		// One guarded write. A concurrent dispatch that already moved the row
		// to sent makes this a benign no-op.
		if err := d.store.UpdateStatus(ctx, n.ID, tenantID, domain.StatusSent, now); err != nil &&
			!errors.Is(err, domain.ErrInvalidTransition) {
			return task.FromError(fmt.Errorf("record send: %w", err))
		}
		res := task.Success("notification sent").
			With("notification_id", n.ID).
			With("sent_channels", channelNames(sentChannels))
		if len(failedChannels) > 0 {
			res = res.With("failed_channels", channelNames(failedChannels))
		}
		return res
	}

	errMsg := strings.Join(sendErrs, "; ")
	if err := d.store.MarkFailed(ctx, n.ID, tenantID, errMsg, now); err != nil &&
		!errors.Is(err, domain.ErrInvalidTransition) {
		return task.FromError(fmt.Errorf("record failure: %w", err))
	}
	return task.Failure(task.KindSenderFailure, "all channels failed: %s", errMsg).
		With("notification_id", n.ID).
		With("failed_channels", channelNames(failedChannels))
}

func (d *Dispatcher) sendOne(ctx context.Context, n *domain.Notification, ch domain.Channel) error {
	s, err := d.senders.For(ch)
	if err != nil {
		return err
	}
	if err := d.limiter.Wait(ctx, ch); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	ack, err := s.Send(ctx, n)
	if err != nil {
		return err
	}
	if !ack.Delivered {
		return fmt.Errorf("%w: provider rejected delivery", domain.ErrSenderFailure)
	}
	return nil
}

func intersect(have, want []domain.Channel) []domain.Channel {
	wanted := make(map[domain.Channel]bool, len(want))
	for _, c := range want {
		wanted[c] = true
	}
	var out []domain.Channel
	for _, c := range have {
		if wanted[c] {
			out = append(out, c)
		}
	}
	return out
}

func channelNames(chs []domain.Channel) []string {
	names := make([]string, len(chs))
	for i, c := range chs {
		names[i] = string(c)
	}
	return names
}
