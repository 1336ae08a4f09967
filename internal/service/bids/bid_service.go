package bids

import (
	"context"
	"time"

	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/kafka"
	"github.com/valetmatch/valetmatch/internal/repository"
	"go.uber.org/zap"
)

// Outcome of recording one response. A tentative leader can still be outbid
// until the acceptance deadline; the award itself happens in FinalizeExpired.
type Outcome string

const (
	// OutcomeTentative: the responder currently leads the bidding.
	OutcomeTentative Outcome = "tentative"
	// OutcomeRecorded: the response is on file but someone else leads.
	OutcomeRecorded Outcome = "recorded"
)

type BidOutcome struct {
	Outcome Outcome
	Booking *domain.Booking
}

// BidUseCase serializes concurrent accept/decline responses and awards the job
// at deadline expiry.
type BidUseCase interface {
	RecordResponse(ctx context.Context, bookingID, valeterID string, accepted bool) (*BidOutcome, error)
	FinalizeExpired(ctx context.Context) ([]domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BidService struct {
	bookings    repository.BookingStore
	producer    Producer
	eventsTopic string
	logger      *zap.Logger
}

type BidServiceOption func(*BidService)

func WithEventsTopic(topic string) BidServiceOption {
	return func(s *BidService) {
		s.eventsTopic = topic
	}
}

func NewBidService(bookings repository.BookingStore, producer Producer, logger *zap.Logger, opts ...BidServiceOption) *BidService {
	service := &BidService{
		bookings: bookings,
		producer: producer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// RecordResponse runs the whole decision under the booking's row lock, so
// concurrent responses for one booking are linearized while responses for
// different bookings proceed independently. The winner is recomputed from all
// accepted responses on every call, which makes arrival order irrelevant.
func (s *BidService) RecordResponse(ctx context.Context, bookingID, valeterID string, accepted bool) (*BidOutcome, error) {
	var outcome *BidOutcome
	err := s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		booking := tx.Booking()
		now := time.Now()

		if booking.AcceptanceDeadline == nil || now.After(*booking.AcceptanceDeadline) {
			return domain.ErrWindowClosed
		}
		if booking.Status != domain.BookingStatusPending {
			return domain.ErrAlreadyAssigned
		}
		if !booking.WasNotified(valeterID) {
			return domain.ErrNotNotified
		}

		if err := tx.UpsertResponse(ctx, valeterID, accepted, now); err != nil {
			return err
		}

		responses, err := tx.AcceptedResponses(ctx)
		if err != nil {
			return err
		}
		best := domain.BestAccepted(responses)

		var leader *string
		if best != nil {
			leader = &best.ValeterID
		}
		if err := tx.SetTentativeWinner(ctx, leader); err != nil {
			return err
		}

		result := OutcomeRecorded
		if accepted && best != nil && best.ValeterID == valeterID {
			result = OutcomeTentative
		}
		outcome = &BidOutcome{Outcome: result, Booking: booking}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// FinalizeExpired awards every booking whose acceptance window has passed:
// highest-rated accepter wins, ties broken by earliest response; no accepters
// means cancellation. Each booking is re-checked under its own lock, so
// running the sweep twice, or concurrently with a late response, is safe.
func (s *BidService) FinalizeExpired(ctx context.Context) ([]domain.Booking, error) {
	ids, err := s.bookings.DueForFinalization(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	var finalized []domain.Booking
	for _, id := range ids {
		booking, err := s.finalize(ctx, id)
		if err != nil {
			s.logger.Warn("failed to finalize booking", zap.String("booking_id", id), zap.Error(err))
			continue
		}
		if booking == nil {
			continue
		}
		finalized = append(finalized, *booking)

		eventType := kafka.EventBookingConfirmed
		if booking.Status == domain.BookingStatusCancelled {
			eventType = kafka.EventBookingCancelled
		}
		if err := s.publish(ctx, eventType, booking); err != nil {
			s.logger.Warn("failed to publish finalization event",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
	return finalized, nil
}

func (s *BidService) finalize(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var finalized *domain.Booking
	err := s.bookings.WithBookingLock(ctx, bookingID, func(ctx context.Context, tx repository.BookingTx) error {
		booking := tx.Booking()
		now := time.Now()

		// Another sweep may have finalized this booking already.
		if booking.Status != domain.BookingStatusPending {
			return nil
		}
		if booking.AcceptanceDeadline == nil || now.Before(*booking.AcceptanceDeadline) {
			return nil
		}

		responses, err := tx.AcceptedResponses(ctx)
		if err != nil {
			return err
		}

		if best := domain.BestAccepted(responses); best != nil {
			if err := tx.Confirm(ctx, best.ValeterID, now); err != nil {
				return err
			}
		} else {
			if err := tx.Cancel(ctx, "no acceptances", now); err != nil {
				return err
			}
		}
		finalized = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

func (s *BidService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.eventsTopic == "" {
		return nil
	}
	return s.producer.Publish(ctx, s.eventsTopic, booking.ID, kafka.NewBookingEvent(eventType, booking))
}

var _ BidUseCase = (*BidService)(nil)
