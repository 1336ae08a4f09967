package domain

import "time"

type ValeterStatus string

const (
	ValeterStatusPending   ValeterStatus = "pending"
	ValeterStatusApproved  ValeterStatus = "approved"
	ValeterStatusRejected  ValeterStatus = "rejected"
	ValeterStatusSuspended ValeterStatus = "suspended"
)

// Valeter is an independent contractor fulfilling bookings. The dispatch core
// only reads valeters; registration and approval live elsewhere.
type Valeter struct {
	ID             string
	BusinessName   string
	Email          string
	Postcode       string
	OffersBudget   bool
	OffersStandard bool
	OffersPremium  bool
	IsMobile       bool
	HasPremises    bool
	Status         ValeterStatus
	Rating         float64
	TotalReviews   int
	CreatedAt      time.Time
}

// OffersTier reports whether the valeter offers the given service tier.
func (v *Valeter) OffersTier(t ServiceTier) bool {
	switch t {
	case TierBudget:
		return v.OffersBudget
	case TierStandard:
		return v.OffersStandard
	case TierPremium:
		return v.OffersPremium
	}
	return false
}

// ServesLocation reports whether the valeter can fulfil the service location mode.
func (v *Valeter) ServesLocation(l ServiceLocation) bool {
	switch l {
	case LocationMobile:
		return v.IsMobile
	case LocationPremises:
		return v.HasPremises
	}
	return false
}
