package jobs

import (
	"context"
	"time"

	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/repository"
	"go.uber.org/zap"
)

// JobUseCase drives an awarded booking through completion and payment
// approval. Approval has two entry paths: the customer's emailed link carrying
// the opaque token, and an in-person confirmation on the assigned valeter's
// device. Both converge on the same guarded transition.
type JobUseCase interface {
	StartJob(ctx context.Context, bookingID, valeterID string) (*domain.Booking, error)
	CompleteJob(ctx context.Context, bookingID, valeterID string) (*domain.Booking, error)
	ApproveByToken(ctx context.Context, token string, audit ApprovalAudit) (*domain.Booking, error)
	ApproveOnDevice(ctx context.Context, bookingID, valeterID string, audit ApprovalAudit) (*domain.Booking, error)
}

// ApprovalAudit captures who pressed the button, from where.
type ApprovalAudit struct {
	IP     string
	Device string
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type JobService struct {
	bookings           repository.BookingStore
	producer           Producer
	notificationsTopic string
	logger             *zap.Logger
}

type JobServiceOption func(*JobService)

func WithNotificationsTopic(topic string) JobServiceOption {
	return func(s *JobService) {
		s.notificationsTopic = topic
	}
}

func NewJobService(bookings repository.BookingStore, producer Producer, logger *zap.Logger, opts ...JobServiceOption) *JobService {
	service := &JobService{
		bookings: bookings,
		producer: producer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *JobService) StartJob(ctx context.Context, bookingID, valeterID string) (*domain.Booking, error) {
	var started *domain.Booking
	err := s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		booking := tx.Booking()
		if !booking.IsAssignedTo(valeterID) {
			return domain.ErrUnauthorized
		}
		if !domain.CanTransition(booking.Status, domain.BookingStatusInProgress) {
			return domain.ErrInvalidState
		}
		if err := tx.Start(ctx, time.Now()); err != nil {
			return err
		}
		started = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// CompleteJob moves a confirmed or in-progress booking to awaiting_approval
// and mints the single-use approval token for the customer link.
func (s *JobService) CompleteJob(ctx context.Context, bookingID, valeterID string) (*domain.Booking, error) {
	var completed *domain.Booking
	err := s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		booking := tx.Booking()
		if !booking.IsAssignedTo(valeterID) {
			return domain.ErrUnauthorized
		}
		if !domain.CanTransition(booking.Status, domain.BookingStatusAwaitingApproval) {
			return domain.ErrInvalidState
		}
		token, err := newApprovalToken()
		if err != nil {
			return err
		}
		if err := tx.AwaitApproval(ctx, token, time.Now()); err != nil {
			return err
		}
		completed = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, kafka.EventAwaitingApproval, completed); err != nil {
		s.logger.Warn("failed to publish awaiting_approval event",
			zap.String("booking_id", bookingID), zap.Error(err))
	}
	return completed, nil
}

func (s *JobService) ApproveByToken(ctx context.Context, token string, audit ApprovalAudit) (*domain.Booking, error) {
	booking, err := s.bookings.GetByApprovalToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.approve(ctx, booking.ID, domain.ApprovedByLink, audit, func(b *domain.Booking) error {
		// The token was looked up, not parsed; re-verify it still matches the
		// row we locked.
		if b.ApprovalToken != token {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *JobService) ApproveOnDevice(ctx context.Context, bookingID, valeterID string, audit ApprovalAudit) (*domain.Booking, error) {
	return s.approve(ctx, bookingID, domain.ApprovedByDevice, audit, func(b *domain.Booking) error {
		if !b.IsAssignedTo(valeterID) {
			return domain.ErrUnauthorized
		}
		return nil
	})
}

// approve applies the awaiting_approval -> payment_approved transition under
// the booking lock. Approving an already-approved booking is a no-op success
// that returns the stored result untouched: customers click links twice.
func (s *JobService) approve(ctx context.Context, bookingID string, by domain.ApprovedBy, audit ApprovalAudit, guard func(*domain.Booking) error) (*domain.Booking, error) {
	var approved *domain.Booking
	transitioned := false
	err := s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		booking := tx.Booking()
		if err := guard(booking); err != nil {
			return err
		}

		switch booking.Status {
		case domain.BookingStatusPaymentApproved, domain.BookingStatusCompleted:
			approved = booking
			return nil
		case domain.BookingStatusAwaitingApproval:
		default:
			return domain.ErrNotAwaitingApproval
		}

		commission, payout := domain.SplitPrice(booking.PricePence)
		if err := tx.ApprovePayment(ctx, by, audit.IP, audit.Device, commission, payout, time.Now()); err != nil {
			return err
		}
		approved = booking
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		if err := s.publish(ctx, kafka.EventPaymentApproved, approved); err != nil {
			s.logger.Warn("failed to publish payment_approved event",
				zap.String("booking_id", bookingID), zap.Error(err))
		}
	}
	return approved, nil
}

func (s *JobService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.notificationsTopic == "" {
		return nil
	}
	return s.producer.Publish(ctx, s.notificationsTopic, booking.ID, kafka.NewBookingEvent(eventType, booking))
}

var _ JobUseCase = (*JobService)(nil)
