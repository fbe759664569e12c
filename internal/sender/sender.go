package sender

import (
	"context"
	"fmt"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// SendResult is a channel sender's acknowledgement.
type SendResult struct {
	Delivered     bool
	ProviderMsgID string
}

// Sender delivers one notification over one channel. Implementations must be
// safe to call more than once for the same notification — delivery upstream
// is at-least-once, and the dispatcher's status guard provides the
// at-most-once externally visible effect.
type Sender interface {
	Send(ctx context.Context, n *domain.Notification) (*SendResult, error)
}

// Registry maps channels to their senders. Built once at startup.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

// Bind assigns a sender to a channel, replacing any previous binding.
func (r *Registry) Bind(ch domain.Channel, s Sender) *Registry {
	r.senders[ch] = s
	return r
}

// For returns the sender bound to a channel.
func (r *Registry) For(ch domain.Channel) (Sender, error) {
	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("%w: no sender bound for channel %s", domain.ErrSenderFailure, ch)
	}
	return s, nil
}
