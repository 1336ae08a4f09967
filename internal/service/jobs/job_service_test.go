package jobs

import (
	"context"
	"testing"

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

func confirmedBooking(id, valeterID string) *domain.Booking {
	return &domain.Booking{
		ID:                id,
		Status:            domain.BookingStatusConfirmed,
		PricePence:        8000,
		CommissionPence:   1000,
		PayoutPence:       7000,
		AssignedValeterID: &valeterID,
	}
}

func TestStartJob_Success(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(confirmedBooking("b1", "v1"))

	service := NewJobService(store, nil, zap.NewNop())

	started, err := service.StartJob(context.Background(), "b1", "v1")
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)
}

func TestStartJob_WrongValeter(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(confirmedBooking("b1", "v1"))

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.StartJob(context.Background(), "b1", "v2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	stored, _ := store.GetByID(context.Background(), "b1")
	assert.Equal(t, domain.BookingStatusConfirmed, stored.Status)
}

func TestStartJob_InvalidState(t *testing.T) {
	store := repotest.NewStore()
	b := confirmedBooking("b1", "v1")
	b.Status = domain.BookingStatusAwaitingApproval
	store.PutBooking(b)

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.StartJob(context.Background(), "b1", "v1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCompleteJob_MintsTokenAndPublishes(t *testing.T) {
	store := repotest.NewStore()
	b := confirmedBooking("b1", "v1")
	b.Status = domain.BookingStatusInProgress
	store.PutBooking(b)

	producer := &MockProducer{}
	ctx := context.Background()
	producer.On("Publish", ctx, "notifications", "b1", mock.Anything).Return(nil).Once()

	service := NewJobService(store, producer, zap.NewNop(), WithNotificationsTopic("notifications"))

	completed, err := service.CompleteJob(ctx, "b1", "v1")
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusAwaitingApproval, completed.Status)
	assert.Len(t, completed.ApprovalToken, 64)
	assert.NotNil(t, completed.CompletedAt)

	producer.AssertExpectations(t)
}

// A confirmed booking can go straight to awaiting_approval; valeters do not
// always press start.
func TestCompleteJob_FromConfirmed(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(confirmedBooking("b1", "v1"))

	service := NewJobService(store, nil, zap.NewNop())

	completed, err := service.CompleteJob(context.Background(), "b1", "v1")
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusAwaitingApproval, completed.Status)
}

func TestCompleteJob_WrongValeter(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(confirmedBooking("b1", "v1"))

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.CompleteJob(context.Background(), "b1", "v2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func awaitingApproval(store *repotest.Store, id, valeterID, token string) {
	b := confirmedBooking(id, valeterID)
	b.Status = domain.BookingStatusAwaitingApproval
	b.ApprovalToken = token
	store.PutBooking(b)
}

func TestApproveByToken_Success(t *testing.T) {
	store := repotest.NewStore()
	awaitingApproval(store, "b1", "v1", "tok-123")

	producer := &MockProducer{}
	ctx := context.Background()
	producer.On("Publish", ctx, "notifications", "b1", mock.Anything).Return(nil).Once()

	service := NewJobService(store, producer, zap.NewNop(), WithNotificationsTopic("notifications"))

	approved, err := service.ApproveByToken(ctx, "tok-123", ApprovalAudit{IP: "10.0.0.1", Device: "iPhone"})
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaymentApproved, approved.Status)
	assert.Equal(t, domain.ApprovedByLink, approved.ApprovedBy)
	assert.Equal(t, "10.0.0.1", approved.ApprovalIP)
	assert.Equal(t, "iPhone", approved.ApprovalDevice)
	assert.Equal(t, int64(1000), approved.CommissionPence)
	assert.Equal(t, int64(7000), approved.PayoutPence)
	assert.Equal(t, approved.PricePence, approved.CommissionPence+approved.PayoutPence)
	assert.NotNil(t, approved.ApprovedAt)

	producer.AssertExpectations(t)
}

func TestApproveByToken_UnknownToken(t *testing.T) {
	store := repotest.NewStore()
	awaitingApproval(store, "b1", "v1", "tok-123")

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.ApproveByToken(context.Background(), "tok-456", ApprovalAudit{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Customers click approval links twice. The second click succeeds without
// touching the stored record or re-announcing the approval.
func TestApproveByToken_Idempotent(t *testing.T) {
	store := repotest.NewStore()
	awaitingApproval(store, "b1", "v1", "tok-123")

	producer := &MockProducer{}
	ctx := context.Background()
	producer.On("Publish", ctx, "notifications", "b1", mock.Anything).Return(nil).Once()

	service := NewJobService(store, producer, zap.NewNop(), WithNotificationsTopic("notifications"))

	first, err := service.ApproveByToken(ctx, "tok-123", ApprovalAudit{IP: "10.0.0.1", Device: "iPhone"})
	assert.NoError(t, err)

	second, err := service.ApproveByToken(ctx, "tok-123", ApprovalAudit{IP: "172.16.0.9", Device: "Android"})
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaymentApproved, second.Status)
	// Audit fields keep the first approval.
	assert.Equal(t, first.ApprovedBy, second.ApprovedBy)
	assert.Equal(t, "10.0.0.1", second.ApprovalIP)
	assert.Equal(t, "iPhone", second.ApprovalDevice)
	assert.Equal(t, first.ApprovedAt, second.ApprovedAt)

	producer.AssertExpectations(t)
	producer.AssertNumberOfCalls(t, "Publish", 1)
}

func TestApproveOnDevice_Success(t *testing.T) {
	store := repotest.NewStore()
	awaitingApproval(store, "b1", "v1", "tok-123")

	service := NewJobService(store, nil, zap.NewNop())

	approved, err := service.ApproveOnDevice(context.Background(), "b1", "v1", ApprovalAudit{IP: "10.1.1.1", Device: "tablet"})
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaymentApproved, approved.Status)
	assert.Equal(t, domain.ApprovedByDevice, approved.ApprovedBy)
}

func TestApproveOnDevice_WrongValeter(t *testing.T) {
	store := repotest.NewStore()
	awaitingApproval(store, "b1", "v1", "tok-123")

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.ApproveOnDevice(context.Background(), "b1", "v2", ApprovalAudit{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	stored, _ := store.GetByID(context.Background(), "b1")
	assert.Equal(t, domain.BookingStatusAwaitingApproval, stored.Status)
}

func TestApprove_NotAwaitingApproval(t *testing.T) {
	store := repotest.NewStore()
	b := confirmedBooking("b1", "v1")
	b.ApprovalToken = "tok-123"
	store.PutBooking(b)

	service := NewJobService(store, nil, zap.NewNop())

	_, err := service.ApproveByToken(context.Background(), "tok-123", ApprovalAudit{})
	assert.ErrorIs(t, err, domain.ErrNotAwaitingApproval)

	_, err = service.ApproveOnDevice(context.Background(), "b1", "v1", ApprovalAudit{})
	assert.ErrorIs(t, err, domain.ErrNotAwaitingApproval)
}

func TestNewApprovalToken(t *testing.T) {
	first, err := newApprovalToken()
	assert.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := newApprovalToken()
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}
