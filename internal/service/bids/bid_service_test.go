package bids

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/repository/repotest"
	"go.uber.org/zap"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func openBooking(store *repotest.Store, id string, notified []string, deadline time.Time) {
	store.PutBooking(&domain.Booking{
		ID:                 id,
		Status:             domain.BookingStatusPending,
		PricePence:         8000,
		NotifiedValeterIDs: notified,
		AcceptanceDeadline: &deadline,
	})
}

func TestRecordResponse_AcceptBecomesTentativeWinner(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.5)
	openBooking(store, "b1", []string{"v1", "v2"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	outcome, err := service.RecordResponse(context.Background(), "b1", "v1", true)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeTentative, outcome.Outcome)
	assert.True(t, outcome.Booking.IsAssignedTo("v1"))
	assert.Equal(t, domain.BookingStatusPending, outcome.Booking.Status)

	stored, err := store.GetByID(context.Background(), "b1")
	assert.NoError(t, err)
	assert.True(t, stored.IsAssignedTo("v1"))
}

func TestRecordResponse_HigherRatedLaterAcceptOvertakes(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.7)
	store.SetRating("v2", 4.95)
	store.SetRating("v3", 4.9)
	openBooking(store, "b1", []string{"v1", "v2", "v3"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())
	ctx := context.Background()

	first, err := service.RecordResponse(ctx, "b1", "v1", true)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeTentative, first.Outcome)

	second, err := service.RecordResponse(ctx, "b1", "v2", true)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeTentative, second.Outcome)
	assert.True(t, second.Booking.IsAssignedTo("v2"))

	// v3 is rated above v1 but below the current leader.
	third, err := service.RecordResponse(ctx, "b1", "v3", true)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, third.Outcome)
	assert.True(t, third.Booking.IsAssignedTo("v2"))
}

func TestRecordResponse_DeclineNeverAssigns(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 5.0)
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	outcome, err := service.RecordResponse(context.Background(), "b1", "v1", false)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, outcome.Outcome)
	assert.Nil(t, outcome.Booking.AssignedValeterID)
}

func TestRecordResponse_LeaderDeclineWithdrawsLeadership(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.9)
	store.SetRating("v2", 4.5)
	openBooking(store, "b1", []string{"v1", "v2"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := service.RecordResponse(ctx, "b1", "v1", true)
	assert.NoError(t, err)
	_, err = service.RecordResponse(ctx, "b1", "v2", true)
	assert.NoError(t, err)

	// The leader changes their mind; the runner-up takes over.
	outcome, err := service.RecordResponse(ctx, "b1", "v1", false)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, outcome.Outcome)
	assert.True(t, outcome.Booking.IsAssignedTo("v2"))
}

func TestRecordResponse_SoleDeclineThenNobodyAssigned(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.9)
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := service.RecordResponse(ctx, "b1", "v1", true)
	assert.NoError(t, err)

	outcome, err := service.RecordResponse(ctx, "b1", "v1", false)
	assert.NoError(t, err)
	assert.Nil(t, outcome.Booking.AssignedValeterID)
}

func TestRecordResponse_WindowClosed(t *testing.T) {
	store := repotest.NewStore()
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(-time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	_, err := service.RecordResponse(context.Background(), "b1", "v1", true)
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestRecordResponse_BiddingNeverOpened(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(&domain.Booking{
		ID:                 "b1",
		Status:             domain.BookingStatusPending,
		NotifiedValeterIDs: []string{"v1"},
	})

	service := NewBidService(store, nil, zap.NewNop())

	_, err := service.RecordResponse(context.Background(), "b1", "v1", true)
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestRecordResponse_AlreadyAssigned(t *testing.T) {
	store := repotest.NewStore()
	deadline := time.Now().Add(10 * time.Minute)
	winner := "v2"
	store.PutBooking(&domain.Booking{
		ID:                 "b1",
		Status:             domain.BookingStatusConfirmed,
		NotifiedValeterIDs: []string{"v1", "v2"},
		AcceptanceDeadline: &deadline,
		AssignedValeterID:  &winner,
	})

	service := NewBidService(store, nil, zap.NewNop())

	_, err := service.RecordResponse(context.Background(), "b1", "v1", true)
	assert.ErrorIs(t, err, domain.ErrAlreadyAssigned)
}

func TestRecordResponse_NotNotified(t *testing.T) {
	store := repotest.NewStore()
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	_, err := service.RecordResponse(context.Background(), "b1", "intruder", true)
	assert.ErrorIs(t, err, domain.ErrNotNotified)
}

func TestRecordResponse_UnknownBooking(t *testing.T) {
	service := NewBidService(repotest.NewStore(), nil, zap.NewNop())

	_, err := service.RecordResponse(context.Background(), "missing", "v1", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Ten valeters race to accept the same booking. However the goroutines
// interleave, the highest-rated accepter must hold the assignment at the end.
func TestRecordResponse_ConcurrentAcceptsHighestRatingWins(t *testing.T) {
	store := repotest.NewStore()
	var notified []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("v%02d", i)
		notified = append(notified, id)
		store.SetRating(id, 3.0+float64(i)*0.2)
	}
	openBooking(store, "b1", notified, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	var wg sync.WaitGroup
	for _, id := range notified {
		wg.Add(1)
		go func(valeterID string) {
			defer wg.Done()
			_, err := service.RecordResponse(context.Background(), "b1", valeterID, true)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	stored, err := store.GetByID(context.Background(), "b1")
	assert.NoError(t, err)
	assert.True(t, stored.IsAssignedTo("v09"), "highest rated accepter must lead, got %v", stored.AssignedValeterID)
	assert.Equal(t, domain.BookingStatusPending, stored.Status)
}

func TestFinalizeExpired_ConfirmsBestAccepter(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.2)
	store.SetRating("v2", 4.8)
	openBooking(store, "b1", []string{"v1", "v2"}, time.Now().Add(time.Minute))

	producer := &MockProducer{}
	service := NewBidService(store, producer, zap.NewNop(), WithEventsTopic("booking-events"))
	ctx := context.Background()

	_, err := service.RecordResponse(ctx, "b1", "v1", true)
	assert.NoError(t, err)
	_, err = service.RecordResponse(ctx, "b1", "v2", true)
	assert.NoError(t, err)

	// Window lapses.
	expired := time.Now().Add(-time.Second)
	stored, _ := store.GetByID(ctx, "b1")
	stored.AcceptanceDeadline = &expired
	store.PutBooking(stored)

	producer.On("Publish", ctx, "booking-events", "b1", mock.Anything).Return(nil).Once()

	finalized, err := service.FinalizeExpired(ctx)
	assert.NoError(t, err)
	assert.Len(t, finalized, 1)
	assert.Equal(t, domain.BookingStatusConfirmed, finalized[0].Status)
	assert.True(t, finalized[0].IsAssignedTo("v2"))
	assert.NotNil(t, finalized[0].ConfirmedAt)

	producer.AssertExpectations(t)
}

func TestFinalizeExpired_NoAcceptancesCancels(t *testing.T) {
	store := repotest.NewStore()
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(time.Minute))

	service := NewBidService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := service.RecordResponse(ctx, "b1", "v1", false)
	assert.NoError(t, err)

	expired := time.Now().Add(-time.Second)
	stored, _ := store.GetByID(ctx, "b1")
	stored.AcceptanceDeadline = &expired
	store.PutBooking(stored)

	finalized, err := service.FinalizeExpired(ctx)
	assert.NoError(t, err)
	assert.Len(t, finalized, 1)
	assert.Equal(t, domain.BookingStatusCancelled, finalized[0].Status)
	assert.Nil(t, finalized[0].AssignedValeterID)
	assert.Equal(t, "no acceptances", finalized[0].CancellationReason)
}

func TestFinalizeExpired_SkipsOpenWindows(t *testing.T) {
	store := repotest.NewStore()
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(10*time.Minute))

	service := NewBidService(store, nil, zap.NewNop())

	finalized, err := service.FinalizeExpired(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, finalized)

	stored, _ := store.GetByID(context.Background(), "b1")
	assert.Equal(t, domain.BookingStatusPending, stored.Status)
}

// Running the sweep twice must not rewrite an already-finalized booking.
func TestFinalizeExpired_SecondSweepIsNoop(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.0)
	openBooking(store, "b1", []string{"v1"}, time.Now().Add(time.Minute))

	service := NewBidService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := service.RecordResponse(ctx, "b1", "v1", true)
	assert.NoError(t, err)

	expired := time.Now().Add(-time.Second)
	stored, _ := store.GetByID(ctx, "b1")
	stored.AcceptanceDeadline = &expired
	store.PutBooking(stored)

	first, err := service.FinalizeExpired(ctx)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := service.FinalizeExpired(ctx)
	assert.NoError(t, err)
	assert.Empty(t, second)
}

// Publish failures are logged and swallowed; the award already happened.
func TestFinalizeExpired_PublishFailureDoesNotFail(t *testing.T) {
	store := repotest.NewStore()
	store.SetRating("v1", 4.0)
	expired := time.Now().Add(-time.Second)
	store.PutBooking(&domain.Booking{
		ID:                 "b1",
		Status:             domain.BookingStatusPending,
		NotifiedValeterIDs: []string{"v1"},
		AcceptanceDeadline: &expired,
	})

	producer := &MockProducer{}
	producer.On("Publish", mock.Anything, "booking-events", "b1", mock.Anything).
		Return(assert.AnError).Once()

	service := NewBidService(store, producer, zap.NewNop(), WithEventsTopic("booking-events"))

	finalized, err := service.FinalizeExpired(context.Background())
	assert.NoError(t, err)
	assert.Len(t, finalized, 1)
	assert.Equal(t, domain.BookingStatusCancelled, finalized[0].Status)

	producer.AssertExpectations(t)
}
