package domain

// legalTransitions is the single source of truth for status changes. Callers
// must reject anything not listed here; statuses are never coerced.
var legalTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:          {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:        {BookingStatusInProgress, BookingStatusAwaitingApproval, BookingStatusCancelled, BookingStatusDisputed},
	BookingStatusInProgress:       {BookingStatusAwaitingApproval, BookingStatusDisputed},
	BookingStatusAwaitingApproval: {BookingStatusPaymentApproved, BookingStatusDisputed},
	BookingStatusPaymentApproved:  {BookingStatusCompleted, BookingStatusDisputed},
}

// CanTransition reports whether moving a booking from one status to another is
// legal. Terminal statuses (completed, cancelled, disputed) allow nothing.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave the status.
func Terminal(s BookingStatus) bool {
	return len(legalTransitions[s]) == 0
}
