package dispatch

import (
	"context"
	"time"

	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/repository"
	"go.uber.org/zap"
)

// DefaultAcceptanceWindow is how long notified valeters have to respond.
const DefaultAcceptanceWindow = 15 * time.Minute

// DispatchUseCase opens the acceptance window for a pending booking.
type DispatchUseCase interface {
	OpenBidding(ctx context.Context, bookingID string) (*DispatchResult, error)
}

type DispatchResult struct {
	Deadline           time.Time
	NotifiedValeterIDs []string
}

// Directory caches eligible-valeter lookups; a miss falls through to the store.
type Directory interface {
	GetEligible(ctx context.Context, area string, tier domain.ServiceTier, location domain.ServiceLocation) ([]domain.Valeter, error)
	SetEligible(ctx context.Context, area string, tier domain.ServiceTier, location domain.ServiceLocation, valeters []domain.Valeter) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type DispatchService struct {
	bookings           repository.BookingStore
	valeters           repository.ValeterStore
	directory          Directory
	producer           Producer
	notificationsTopic string
	acceptanceWindow   time.Duration
	logger             *zap.Logger
}

type DispatchServiceOption func(*DispatchService)

func WithAcceptanceWindow(window time.Duration) DispatchServiceOption {
	return func(s *DispatchService) {
		s.acceptanceWindow = window
	}
}

func WithNotificationsTopic(topic string) DispatchServiceOption {
	return func(s *DispatchService) {
		s.notificationsTopic = topic
	}
}

func NewDispatchService(
	bookings repository.BookingStore,
	valeters repository.ValeterStore,
	directory Directory,
	producer Producer,
	logger *zap.Logger,
	opts ...DispatchServiceOption,
) *DispatchService {
	service := &DispatchService{
		bookings:         bookings,
		valeters:         valeters,
		directory:        directory,
		producer:         producer,
		acceptanceWindow: DefaultAcceptanceWindow,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// OpenBidding selects the eligible valeters for a pending booking, stamps the
// acceptance deadline onto it and notifies the candidates. The booking is
// re-checked under its row lock before anything is written.
func (s *DispatchService) OpenBidding(ctx context.Context, bookingID string) (*DispatchResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending || booking.AssignedValeterID != nil {
		return nil, domain.ErrInvalidState
	}

	candidates, err := s.eligibleValeters(ctx, booking)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoEligibleValeters
	}

	notified := make([]string, 0, len(candidates))
	for _, v := range candidates {
		notified = append(notified, v.ID)
	}
	deadline := time.Now().Add(s.acceptanceWindow)

	var opened *domain.Booking
	err = s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		current := tx.Booking()
		if current.Status != domain.BookingStatusPending || current.AssignedValeterID != nil || current.AcceptanceDeadline != nil {
			return domain.ErrInvalidState
		}
		if err := tx.OpenBidding(ctx, notified, deadline); err != nil {
			return err
		}
		opened = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, kafka.EventBiddingOpened, opened); err != nil {
		s.logger.Warn("failed to publish bidding_opened event",
			zap.String("booking_id", bookingID), zap.Error(err))
	}

	return &DispatchResult{Deadline: deadline, NotifiedValeterIDs: notified}, nil
}

func (s *DispatchService) eligibleValeters(ctx context.Context, booking *domain.Booking) ([]domain.Valeter, error) {
	area := domain.OutwardCode(booking.Postcode)

	if s.directory != nil {
		cached, err := s.directory.GetEligible(ctx, area, booking.ServiceTier, booking.ServiceLocation)
		if err != nil {
			s.logger.Warn("valeter directory cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	valeters, err := s.valeters.FindEligible(ctx, area, booking.ServiceTier, booking.ServiceLocation)
	if err != nil {
		return nil, err
	}

	if s.directory != nil && len(valeters) > 0 {
		if err := s.directory.SetEligible(ctx, area, booking.ServiceTier, booking.ServiceLocation, valeters); err != nil {
			s.logger.Warn("valeter directory cache write failed", zap.Error(err))
		}
	}
	return valeters, nil
}

func (s *DispatchService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.notificationsTopic == "" {
		return nil
	}
	return s.producer.Publish(ctx, s.notificationsTopic, booking.ID, kafka.NewBookingEvent(eventType, booking))
}

var _ DispatchUseCase = (*DispatchService)(nil)
