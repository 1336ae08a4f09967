// Package repotest provides an in-memory BookingStore for service tests.
// WithBookingLock takes a per-booking mutex, giving tests the same
// serialization the row lock gives production code.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/repository"
)

type response struct {
	accepted    bool
	respondedAt time.Time
}

type Store struct {
	mu        sync.Mutex
	bookings  map[string]*domain.Booking
	responses map[string]map[string]response
	ratings   map[string]float64
	locks     map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		bookings:  map[string]*domain.Booking{},
		responses: map[string]map[string]response{},
		ratings:   map[string]float64{},
		locks:     map[string]*sync.Mutex{},
	}
}

// PutBooking seeds a booking, bypassing intake.
func (s *Store) PutBooking(b *domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = cloneBooking(b)
}

// SetRating seeds the rating joined into AcceptedResponses.
func (s *Store) SetRating(valeterID string, rating float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[valeterID] = rating
}

func (s *Store) Create(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *Store) GetByApprovalToken(ctx context.Context, token string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ApprovalToken != "" && b.ApprovalToken == token {
			return cloneBooking(b), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.ValeterID != "" && !b.IsAssignedTo(filter.ValeterID) {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) DueForFinalization(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, b := range s.bookings {
		if b.Status == domain.BookingStatusPending && b.AcceptanceDeadline != nil && !b.AcceptanceDeadline.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context, tx repository.BookingTx) error) error {
	s.mu.Lock()
	lock, ok := s.locks[bookingID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[bookingID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	b, ok := s.bookings[bookingID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	tx := &bookingTx{
		store:     s,
		booking:   cloneBooking(b),
		responses: map[string]response{},
	}
	for valeterID, r := range s.responses[bookingID] {
		tx.responses[valeterID] = r
	}
	s.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.bookings[bookingID] = tx.booking
	s.responses[bookingID] = tx.responses
	s.mu.Unlock()
	return nil
}

// Responses returns the committed decisions for a booking, keyed by valeter.
func (s *Store) Responses(bookingID string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for valeterID, r := range s.responses[bookingID] {
		out[valeterID] = r.accepted
	}
	return out
}

// bookingTx mutates a private copy; WithBookingLock commits it on success and
// discards it on error, mirroring the transactional store.
type bookingTx struct {
	store     *Store
	booking   *domain.Booking
	responses map[string]response
}

func (t *bookingTx) Booking() *domain.Booking { return t.booking }

func (t *bookingTx) OpenBidding(ctx context.Context, notified []string, deadline time.Time) error {
	t.booking.NotifiedValeterIDs = append([]string(nil), notified...)
	t.booking.AcceptanceDeadline = &deadline
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) UpsertResponse(ctx context.Context, valeterID string, accepted bool, at time.Time) error {
	if existing, ok := t.responses[valeterID]; ok && existing.accepted == accepted {
		return nil
	}
	t.responses[valeterID] = response{accepted: accepted, respondedAt: at}
	return nil
}

func (t *bookingTx) AcceptedResponses(ctx context.Context) ([]domain.BidResponse, error) {
	t.store.mu.Lock()
	ratings := map[string]float64{}
	for id, r := range t.store.ratings {
		ratings[id] = r
	}
	t.store.mu.Unlock()

	var out []domain.BidResponse
	for valeterID, r := range t.responses {
		if !r.accepted {
			continue
		}
		out = append(out, domain.BidResponse{
			BookingID:   t.booking.ID,
			ValeterID:   valeterID,
			Accepted:    true,
			RespondedAt: r.respondedAt,
			Rating:      ratings[valeterID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Outranks(&out[j]) })
	return out, nil
}

func (t *bookingTx) SetTentativeWinner(ctx context.Context, valeterID *string) error {
	if valeterID == nil {
		t.booking.AssignedValeterID = nil
	} else {
		id := *valeterID
		t.booking.AssignedValeterID = &id
	}
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) Confirm(ctx context.Context, valeterID string, at time.Time) error {
	t.booking.Status = domain.BookingStatusConfirmed
	t.booking.AssignedValeterID = &valeterID
	t.booking.ConfirmedAt = &at
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) Cancel(ctx context.Context, reason string, at time.Time) error {
	t.booking.Status = domain.BookingStatusCancelled
	t.booking.CancellationReason = reason
	t.booking.CancelledAt = &at
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) Start(ctx context.Context, at time.Time) error {
	t.booking.Status = domain.BookingStatusInProgress
	t.booking.StartedAt = &at
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) AwaitApproval(ctx context.Context, token string, at time.Time) error {
	t.booking.Status = domain.BookingStatusAwaitingApproval
	t.booking.ApprovalToken = token
	t.booking.CompletedAt = &at
	t.booking.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) ApprovePayment(ctx context.Context, by domain.ApprovedBy, ip, device string, commission, payout int64, at time.Time) error {
	t.booking.Status = domain.BookingStatusPaymentApproved
	t.booking.ApprovedBy = by
	t.booking.ApprovalIP = ip
	t.booking.ApprovalDevice = device
	t.booking.CommissionPence = commission
	t.booking.PayoutPence = payout
	t.booking.ApprovedAt = &at
	t.booking.UpdatedAt = time.Now()
	return nil
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.NotifiedValeterIDs = append([]string(nil), b.NotifiedValeterIDs...)
	c.AcceptanceDeadline = cloneTime(b.AcceptanceDeadline)
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.StartedAt = cloneTime(b.StartedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.ApprovedAt = cloneTime(b.ApprovedAt)
	if b.AssignedValeterID != nil {
		id := *b.AssignedValeterID
		c.AssignedValeterID = &id
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ repository.BookingStore = (*Store)(nil)
var _ repository.BookingTx = (*bookingTx)(nil)
