package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/valetmatch/valetmatch/internal/domain"
	"github.com/valetmatch/valetmatch/internal/repository"
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

func validInput() CreateBookingInput {
	return CreateBookingInput{
		CustomerName:  "Jo Bloggs",
		CustomerEmail: "jo@example.com",
		Postcode:      "pr25 3xy",
		BookingDate:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		BookingTime:   "10:30",
		VehicleSize:   domain.VehicleMedium,
		ServiceTier:   domain.TierStandard,
		PricePence:    8000,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	store := repotest.NewStore()
	producer := &MockProducer{}
	ctx := context.Background()
	producer.On("Publish", ctx, "booking-events", mock.Anything, mock.Anything).Return(nil).Once()

	service := NewBookingService(store, producer, zap.NewNop(), WithEventsTopic("booking-events"))

	created, err := service.CreateBooking(ctx, validInput())
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.BookingStatusPending, created.Status)
	assert.Equal(t, "PR25 3XY", created.Postcode)
	assert.Equal(t, int64(8000), created.PricePence)
	assert.Equal(t, int64(1000), created.CommissionPence)
	assert.Equal(t, int64(7000), created.PayoutPence)
	assert.Equal(t, domain.LocationMobile, created.ServiceLocation)
	assert.Nil(t, created.AcceptanceDeadline)
	assert.Nil(t, created.AssignedValeterID)

	stored, err := store.GetByID(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)

	producer.AssertExpectations(t)
}

func TestCreateBooking_ValidationErrors(t *testing.T) {
	service := NewBookingService(repotest.NewStore(), nil, zap.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name        string
		mutate      func(*CreateBookingInput)
		expectedErr string
	}{
		{
			name:        "missing postcode",
			mutate:      func(in *CreateBookingInput) { in.Postcode = "" },
			expectedErr: "postcode is required",
		},
		{
			name:        "missing email",
			mutate:      func(in *CreateBookingInput) { in.CustomerEmail = "" },
			expectedErr: "customer email is required",
		},
		{
			name:        "zero price",
			mutate:      func(in *CreateBookingInput) { in.PricePence = 0 },
			expectedErr: "price must be positive",
		},
		{
			name:        "negative price",
			mutate:      func(in *CreateBookingInput) { in.PricePence = -100 },
			expectedErr: "price must be positive",
		},
		{
			name:        "bad time",
			mutate:      func(in *CreateBookingInput) { in.BookingTime = "25:99" },
			expectedErr: "invalid booking time",
		},
		{
			name:        "bad vehicle size",
			mutate:      func(in *CreateBookingInput) { in.VehicleSize = "tank" },
			expectedErr: "invalid vehicle size",
		},
		{
			name:        "bad service tier",
			mutate:      func(in *CreateBookingInput) { in.ServiceTier = "luxury" },
			expectedErr: "invalid service tier",
		},
		{
			name:        "bad service location",
			mutate:      func(in *CreateBookingInput) { in.ServiceLocation = "boat" },
			expectedErr: "invalid service location",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)

			created, err := service.CreateBooking(ctx, input)
			assert.Error(t, err)
			assert.Nil(t, created)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestCreateBooking_ExplicitPremisesLocation(t *testing.T) {
	service := NewBookingService(repotest.NewStore(), nil, zap.NewNop())

	input := validInput()
	input.ServiceLocation = domain.LocationPremises

	created, err := service.CreateBooking(context.Background(), input)
	assert.NoError(t, err)
	assert.Equal(t, domain.LocationPremises, created.ServiceLocation)
}

func TestCreateBooking_PublishFailureDoesNotFail(t *testing.T) {
	producer := &MockProducer{}
	producer.On("Publish", mock.Anything, "booking-events", mock.Anything, mock.Anything).
		Return(assert.AnError).Once()

	service := NewBookingService(repotest.NewStore(), producer, zap.NewNop(), WithEventsTopic("booking-events"))

	created, err := service.CreateBooking(context.Background(), validInput())
	assert.NoError(t, err)
	assert.NotNil(t, created)

	producer.AssertExpectations(t)
}

func TestGetBooking(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(&domain.Booking{ID: "b1", Status: domain.BookingStatusPending})

	service := NewBookingService(store, nil, zap.NewNop())

	found, err := service.GetBooking(context.Background(), "b1")
	assert.NoError(t, err)
	assert.Equal(t, "b1", found.ID)

	_, err = service.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListBookings_FilterByStatus(t *testing.T) {
	store := repotest.NewStore()
	store.PutBooking(&domain.Booking{ID: "b1", Status: domain.BookingStatusPending})
	store.PutBooking(&domain.Booking{ID: "b2", Status: domain.BookingStatusConfirmed})

	service := NewBookingService(store, nil, zap.NewNop())

	listed, err := service.ListBookings(context.Background(), repository.BookingFilter{
		Status: domain.BookingStatusPending,
	})
	assert.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, "b1", listed[0].ID)
}
