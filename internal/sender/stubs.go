package sender

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// LogSender is a transport stub that records the send in the log instead of
// calling a real provider. Email, push and SMS run on stubs until their
// transports are wired; in-app delivery genuinely is just the store record
// plus this acknowledgement.
type LogSender struct {
	channel domain.Channel
	logger  *zap.Logger
}

func NewLogSender(channel domain.Channel, logger *zap.Logger) *LogSender {
	return &LogSender{channel: channel, logger: logger}
}

func (s *LogSender) Send(_ context.Context, n *domain.Notification) (*SendResult, error) {
	s.logger.Info("notification sent",
		zap.String("channel", string(s.channel)),
		zap.String("notification_id", n.ID),
		zap.String("tenant_id", n.TenantID),
		zap.String("recipient_id", n.RecipientID),
		zap.String("title", n.Title),
	)
	return &SendResult{Delivered: true, ProviderMsgID: uuid.New().String()}, nil
}

var _ Sender = (*LogSender)(nil)
