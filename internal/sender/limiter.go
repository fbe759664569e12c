package sender

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// ChannelLimiters holds one token-bucket limiter per channel. Burst equals
// the rate so no capacity is saved up beyond the configured per-second
// maximum.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// NewChannelLimiters creates a limiter set with ratePerSec tokens per second
// per channel.
func NewChannelLimiters(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	limiters := make(map[domain.Channel]*rate.Limiter)
	for _, ch := range domain.AllChannels() {
		limiters[ch] = rate.NewLimiter(r, ratePerSec)
	}
	return &ChannelLimiters{limiters: limiters}
}

// Wait blocks until the channel's limiter grants a token, or ctx is
// cancelled. Called by the dispatcher immediately before each sender call.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	l, ok := cl.limiters[ch]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
