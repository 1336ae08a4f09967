package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valetmatch/valetmatch/internal/domain"
)

// BookingStore is the durable record of bookings. All mutating transitions run
// through WithBookingLock so every write for one booking is serialized.
type BookingStore interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByApprovalToken(ctx context.Context, token string) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	DueForFinalization(ctx context.Context, now time.Time) ([]string, error)
	WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context, tx BookingTx) error) error
}

// BookingTx is the mutation surface available while holding the row lock for
// one booking. Booking returns the row as read under FOR UPDATE; callers must
// base every status check on it, never on state read outside the lock.
type BookingTx interface {
	Booking() *domain.Booking
	OpenBidding(ctx context.Context, notified []string, deadline time.Time) error
	UpsertResponse(ctx context.Context, valeterID string, accepted bool, at time.Time) error
	AcceptedResponses(ctx context.Context) ([]domain.BidResponse, error)
	SetTentativeWinner(ctx context.Context, valeterID *string) error
	Confirm(ctx context.Context, valeterID string, at time.Time) error
	Cancel(ctx context.Context, reason string, at time.Time) error
	Start(ctx context.Context, at time.Time) error
	AwaitApproval(ctx context.Context, token string, at time.Time) error
	ApprovePayment(ctx context.Context, by domain.ApprovedBy, ip, device string, commission, payout int64, at time.Time) error
}

type BookingFilter struct {
	Status    domain.BookingStatus
	ValeterID string
	Limit     int
}

type PGBookingStore struct {
	db *pgxpool.Pool
}

func NewBookingStore(db *pgxpool.Pool) BookingStore {
	return &PGBookingStore{db: db}
}

const bookingColumns = `id, customer_name, customer_email, customer_phone, postcode, address_line1, city,
	booking_date, booking_time, vehicle_size, service_tier, service_location, special_instructions,
	price_pence, commission_pence, payout_pence, status, notified_valeter_ids, acceptance_deadline,
	assigned_valeter_id, approval_token, approved_by, approval_ip, approval_device, cancellation_reason,
	created_at, confirmed_at, started_at, completed_at, cancelled_at, approved_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var approvedBy *string
	if err := row.Scan(
		&b.ID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Postcode, &b.AddressLine1, &b.City,
		&b.BookingDate, &b.BookingTime, &b.VehicleSize, &b.ServiceTier, &b.ServiceLocation, &b.SpecialInstructions,
		&b.PricePence, &b.CommissionPence, &b.PayoutPence, &b.Status, &b.NotifiedValeterIDs, &b.AcceptanceDeadline,
		&b.AssignedValeterID, &b.ApprovalToken, &approvedBy, &b.ApprovalIP, &b.ApprovalDevice, &b.CancellationReason,
		&b.CreatedAt, &b.ConfirmedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt, &b.ApprovedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if approvedBy != nil {
		b.ApprovedBy = domain.ApprovedBy(*approvedBy)
	}
	return &b, nil
}

func (s *PGBookingStore) Create(ctx context.Context, booking *domain.Booking) error {
	return s.db.QueryRow(ctx, `INSERT INTO bookings (
			id, customer_name, customer_email, customer_phone, postcode, address_line1, city,
			booking_date, booking_time, vehicle_size, service_tier, service_location, special_instructions,
			price_pence, commission_pence, payout_pence, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`,
		booking.ID, booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone,
		booking.Postcode, booking.AddressLine1, booking.City,
		booking.BookingDate, booking.BookingTime, booking.VehicleSize, booking.ServiceTier,
		booking.ServiceLocation, booking.SpecialInstructions,
		booking.PricePence, booking.CommissionPence, booking.PayoutPence, booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

func (s *PGBookingStore) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (s *PGBookingStore) GetByApprovalToken(ctx context.Context, token string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE approval_token=$1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (s *PGBookingStore) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.ValeterID != "" {
		args = append(args, filter.ValeterID)
		query += ` AND assigned_valeter_id=$` + strconv.Itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// DueForFinalization returns ids of bookings whose acceptance window has
// expired while still pending. Ids only: the finalizer re-reads each booking
// under its own lock before deciding anything.
func (s *PGBookingStore) DueForFinalization(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM bookings WHERE status=$1 AND acceptance_deadline IS NOT NULL AND acceptance_deadline <= $2`,
		domain.BookingStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGBookingStore) WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context, tx BookingTx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if err := fn(ctx, &pgBookingTx{tx: tx, booking: b}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
