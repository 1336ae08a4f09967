package email

import (
	"context"

	"github.com/valetmatch/valetmatch/internal/kafka"
	"go.uber.org/zap"
)

// Sender is the notification sink behind the worker's kafka consumer. Real
// delivery (SMTP/SMS provider) hangs off this; for now each notice is logged.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	s.logger.Info("sending booking notice",
		zap.String("type", event.Type),
		zap.String("booking_id", event.BookingID),
		zap.String("to", event.CustomerEmail),
		zap.Int("notified_valeters", len(event.NotifiedValeterIDs)),
	)
	return nil
}
