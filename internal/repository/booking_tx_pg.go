package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/valetmatch/valetmatch/internal/domain"
)

// pgBookingTx carries a transaction that holds the FOR UPDATE lock on one
// booking row. It mutates the loaded booking in step with the database so the
// caller sees the post-write state without re-reading.
type pgBookingTx struct {
	tx      pgx.Tx
	booking *domain.Booking
}

func (t *pgBookingTx) Booking() *domain.Booking {
	return t.booking
}

func (t *pgBookingTx) OpenBidding(ctx context.Context, notified []string, deadline time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET notified_valeter_ids=$1, acceptance_deadline=$2, updated_at=now()
		 WHERE id=$3 RETURNING updated_at`,
		notified, deadline, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.NotifiedValeterIDs = notified
	t.booking.AcceptanceDeadline = &deadline
	return nil
}

// UpsertResponse records one valeter's decision. A repeated identical decision
// is a no-op so the first responded_at stands; a changed decision replaces the
// row with the new timestamp.
func (t *pgBookingTx) UpsertResponse(ctx context.Context, valeterID string, accepted bool, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO booking_responses (booking_id, valeter_id, accepted, responded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (booking_id, valeter_id) DO UPDATE
		 SET accepted = EXCLUDED.accepted, responded_at = EXCLUDED.responded_at
		 WHERE booking_responses.accepted IS DISTINCT FROM EXCLUDED.accepted`,
		t.booking.ID, valeterID, accepted, at)
	return err
}

func (t *pgBookingTx) AcceptedResponses(ctx context.Context) ([]domain.BidResponse, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT br.booking_id, br.valeter_id, br.accepted, br.responded_at, v.rating
		 FROM booking_responses br
		 JOIN valeters v ON v.id = br.valeter_id
		 WHERE br.booking_id=$1 AND br.accepted
		 ORDER BY v.rating DESC, br.responded_at ASC, br.valeter_id ASC`,
		t.booking.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []domain.BidResponse
	for rows.Next() {
		var r domain.BidResponse
		if err := rows.Scan(&r.BookingID, &r.ValeterID, &r.Accepted, &r.RespondedAt, &r.Rating); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (t *pgBookingTx) SetTentativeWinner(ctx context.Context, valeterID *string) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET assigned_valeter_id=$1, updated_at=now() WHERE id=$2 RETURNING updated_at`,
		valeterID, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.AssignedValeterID = valeterID
	return nil
}

func (t *pgBookingTx) Confirm(ctx context.Context, valeterID string, at time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, assigned_valeter_id=$2, confirmed_at=$3, updated_at=now()
		 WHERE id=$4 RETURNING updated_at`,
		domain.BookingStatusConfirmed, valeterID, at, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.Status = domain.BookingStatusConfirmed
	t.booking.AssignedValeterID = &valeterID
	t.booking.ConfirmedAt = &at
	return nil
}

func (t *pgBookingTx) Cancel(ctx context.Context, reason string, at time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, cancellation_reason=$2, cancelled_at=$3, updated_at=now()
		 WHERE id=$4 RETURNING updated_at`,
		domain.BookingStatusCancelled, reason, at, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.Status = domain.BookingStatusCancelled
	t.booking.CancellationReason = reason
	t.booking.CancelledAt = &at
	return nil
}

func (t *pgBookingTx) Start(ctx context.Context, at time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, started_at=$2, updated_at=now() WHERE id=$3 RETURNING updated_at`,
		domain.BookingStatusInProgress, at, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.Status = domain.BookingStatusInProgress
	t.booking.StartedAt = &at
	return nil
}

func (t *pgBookingTx) AwaitApproval(ctx context.Context, token string, at time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, approval_token=$2, completed_at=$3, updated_at=now()
		 WHERE id=$4 RETURNING updated_at`,
		domain.BookingStatusAwaitingApproval, token, at, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.Status = domain.BookingStatusAwaitingApproval
	t.booking.ApprovalToken = token
	t.booking.CompletedAt = &at
	return nil
}

func (t *pgBookingTx) ApprovePayment(ctx context.Context, by domain.ApprovedBy, ip, device string, commission, payout int64, at time.Time) error {
	if err := t.tx.QueryRow(ctx,
		`UPDATE bookings SET status=$1, approved_by=$2, approval_ip=$3, approval_device=$4,
			commission_pence=$5, payout_pence=$6, approved_at=$7, updated_at=now()
		 WHERE id=$8 RETURNING updated_at`,
		domain.BookingStatusPaymentApproved, by, ip, device, commission, payout, at, t.booking.ID,
	).Scan(&t.booking.UpdatedAt); err != nil {
		return err
	}
	t.booking.Status = domain.BookingStatusPaymentApproved
	t.booking.ApprovedBy = by
	t.booking.ApprovalIP = ip
	t.booking.ApprovalDevice = device
	t.booking.CommissionPence = commission
	t.booking.PayoutPence = payout
	t.booking.ApprovedAt = &at
	return nil
}

var _ BookingTx = (*pgBookingTx)(nil)
