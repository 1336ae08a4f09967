package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusConfirmed        BookingStatus = "confirmed"
	BookingStatusInProgress       BookingStatus = "in_progress"
	BookingStatusAwaitingApproval BookingStatus = "awaiting_approval"
	BookingStatusPaymentApproved  BookingStatus = "payment_approved"
	BookingStatusCompleted        BookingStatus = "completed"
	BookingStatusCancelled        BookingStatus = "cancelled"
	BookingStatusDisputed         BookingStatus = "disputed"
)

type VehicleSize string

const (
	VehicleSmall  VehicleSize = "small"
	VehicleMedium VehicleSize = "medium"
	VehicleLarge  VehicleSize = "large"
	VehicleVan    VehicleSize = "van"
)

type ServiceTier string

const (
	TierBudget   ServiceTier = "budget"
	TierStandard ServiceTier = "standard"
	TierPremium  ServiceTier = "premium"
)

type ServiceLocation string

const (
	LocationMobile   ServiceLocation = "mobile"
	LocationPremises ServiceLocation = "premises"
)

// ApprovedBy records which channel the customer used to approve payment.
type ApprovedBy string

const (
	ApprovedByLink   ApprovedBy = "customer_link"
	ApprovedByDevice ApprovedBy = "customer_device"
)

type Booking struct {
	ID string

	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	Postcode            string
	AddressLine1        string
	City                string
	BookingDate         time.Time
	BookingTime         string
	VehicleSize         VehicleSize
	ServiceTier         ServiceTier
	ServiceLocation     ServiceLocation
	SpecialInstructions string

	// PricePence is fixed at intake; CommissionPence and PayoutPence are derived
	// from it and always sum back to it exactly.
	PricePence      int64
	CommissionPence int64
	PayoutPence     int64

	Status             BookingStatus
	NotifiedValeterIDs []string
	AcceptanceDeadline *time.Time
	AssignedValeterID  *string

	ApprovalToken      string
	ApprovedBy         ApprovedBy
	ApprovalIP         string
	ApprovalDevice     string
	CancellationReason string

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	ApprovedAt  *time.Time
	UpdatedAt   time.Time
}

// BiddingOpen reports whether the booking is inside an acceptance window: still
// pending with a deadline that has not passed.
func (b *Booking) BiddingOpen(now time.Time) bool {
	return b.Status == BookingStatusPending && b.AcceptanceDeadline != nil && now.Before(*b.AcceptanceDeadline)
}

// WasNotified reports whether the valeter is in the booking's notified set.
func (b *Booking) WasNotified(valeterID string) bool {
	for _, id := range b.NotifiedValeterIDs {
		if id == valeterID {
			return true
		}
	}
	return false
}

// IsAssignedTo reports whether the valeter holds the assignment.
func (b *Booking) IsAssignedTo(valeterID string) bool {
	return b.AssignedValeterID != nil && *b.AssignedValeterID == valeterID
}

func ValidVehicleSize(s VehicleSize) bool {
	switch s {
	case VehicleSmall, VehicleMedium, VehicleLarge, VehicleVan:
		return true
	}
	return false
}

func ValidServiceTier(t ServiceTier) bool {
	switch t {
	case TierBudget, TierStandard, TierPremium:
		return true
	}
	return false
}

func ValidServiceLocation(l ServiceLocation) bool {
	switch l {
	case LocationMobile, LocationPremises:
		return true
	}
	return false
}
