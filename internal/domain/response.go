package domain

import "time"

// BidResponse is one valeter's accept/decline decision for one booking. At
// most one row exists per (booking, valeter); the latest decision wins until
// the booking is awarded.
type BidResponse struct {
	BookingID   string
	ValeterID   string
	Accepted    bool
	RespondedAt time.Time
	// Rating is joined from the valeter record when responses are read back
	// for winner selection.
	Rating float64
}

// BestAccepted returns the winning response among the accepted ones: highest
// rating first, then earliest response, then smallest valeter id so replays
// pick the same winner. Returns nil if nothing was accepted.
func BestAccepted(responses []BidResponse) *BidResponse {
	var best *BidResponse
	for i := range responses {
		r := &responses[i]
		if !r.Accepted {
			continue
		}
		if best == nil || r.Outranks(best) {
			best = r
		}
	}
	return best
}

// Outranks reports whether r beats other for the assignment.
func (r *BidResponse) Outranks(other *BidResponse) bool {
	if r.Rating != other.Rating {
		return r.Rating > other.Rating
	}
	if !r.RespondedAt.Equal(other.RespondedAt) {
		return r.RespondedAt.Before(other.RespondedAt)
	}
	return r.ValeterID < other.ValeterID
}
