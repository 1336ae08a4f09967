package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/repository"
	"go.uber.org/zap"
)

// BookingUseCase is the intake surface. Bookings arrive with a quoted price
// already validated upstream and start life in pending.
type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings    repository.BookingStore
	producer    Producer
	eventsTopic string
	logger      *zap.Logger
}

type CreateBookingInput struct {
	CustomerName        string                 `json:"customer_name"`
	CustomerEmail       string                 `json:"customer_email"`
	CustomerPhone       string                 `json:"customer_phone"`
	Postcode            string                 `json:"postcode"`
	AddressLine1        string                 `json:"address_line1"`
	City                string                 `json:"city"`
	BookingDate         time.Time              `json:"booking_date"`
	BookingTime         string                 `json:"booking_time"`
	VehicleSize         domain.VehicleSize     `json:"vehicle_size"`
	ServiceTier         domain.ServiceTier     `json:"service_tier"`
	ServiceLocation     domain.ServiceLocation `json:"service_location"`
	SpecialInstructions string                 `json:"special_instructions"`
	PricePence          int64                  `json:"price_pence"`
}

type BookingServiceOption func(*BookingService)

func WithEventsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.eventsTopic = topic
	}
}

func NewBookingService(bookings repository.BookingStore, producer Producer, logger *zap.Logger, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		bookings: bookings,
		producer: producer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

var timeOfDay = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Postcode == "" {
		return nil, errors.New("postcode is required")
	}
	if input.CustomerEmail == "" {
		return nil, errors.New("customer email is required")
	}
	if input.PricePence <= 0 {
		return nil, errors.New("price must be positive")
	}
	if !timeOfDay.MatchString(input.BookingTime) {
		return nil, fmt.Errorf("invalid booking time %q", input.BookingTime)
	}
	if !domain.ValidVehicleSize(input.VehicleSize) {
		return nil, fmt.Errorf("invalid vehicle size %q", input.VehicleSize)
	}
	if !domain.ValidServiceTier(input.ServiceTier) {
		return nil, fmt.Errorf("invalid service tier %q", input.ServiceTier)
	}
	location := input.ServiceLocation
	if location == "" {
		location = domain.LocationMobile
	}
	if !domain.ValidServiceLocation(location) {
		return nil, fmt.Errorf("invalid service location %q", location)
	}

	commission, payout := domain.SplitPrice(input.PricePence)

	booking := &domain.Booking{
		ID:                  uuid.NewString(),
		CustomerName:        input.CustomerName,
		CustomerEmail:       input.CustomerEmail,
		CustomerPhone:       input.CustomerPhone,
		Postcode:            domain.NormalizePostcode(input.Postcode),
		AddressLine1:        input.AddressLine1,
		City:                input.City,
		BookingDate:         input.BookingDate,
		BookingTime:         input.BookingTime,
		VehicleSize:         input.VehicleSize,
		ServiceTier:         input.ServiceTier,
		ServiceLocation:     location,
		SpecialInstructions: input.SpecialInstructions,
		PricePence:          input.PricePence,
		CommissionPence:     commission,
		PayoutPence:         payout,
		Status:              domain.BookingStatusPending,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, kafka.EventBookingCreated, booking); err != nil {
		s.logger.Warn("failed to publish booking_created event",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	return s.bookings.List(ctx, filter)
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.eventsTopic == "" {
		return nil
	}
	return s.producer.Publish(ctx, s.eventsTopic, booking.ID, kafka.NewBookingEvent(eventType, booking))
}

var _ BookingUseCase = (*BookingService)(nil)
