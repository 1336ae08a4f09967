package kafka

import "github.com/valetmatch/valetmatch/internal/domain"

// Event types published by the dispatch core.
const (
	EventBookingCreated   = "booking_created"
	EventBiddingOpened    = "bidding_opened"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventAwaitingApproval = "awaiting_approval"
	EventPaymentApproved  = "payment_approved"
)

// NewBookingEvent snapshots the fields the notification collaborator needs.
func NewBookingEvent(eventType string, b *domain.Booking) BookingEvent {
	event := BookingEvent{
		Type:               eventType,
		BookingID:          b.ID,
		Status:             string(b.Status),
		CustomerEmail:      b.CustomerEmail,
		Postcode:           b.Postcode,
		ServiceTier:        string(b.ServiceTier),
		PricePence:         b.PricePence,
		NotifiedValeterIDs: b.NotifiedValeterIDs,
		AcceptanceDeadline: b.AcceptanceDeadline,
		ApprovalToken:      b.ApprovalToken,
	}
	if b.AssignedValeterID != nil {
		event.AssignedValeterID = *b.AssignedValeterID
	}
	return event
}
