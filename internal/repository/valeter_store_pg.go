package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valetmatch/valetmatch/internal/domain"
)

// ValeterStore is read-only from the dispatch core's point of view; valeter
// registration and approval belong to the account surface.
type ValeterStore interface {
	GetByID(ctx context.Context, id string) (*domain.Valeter, error)
	FindEligible(ctx context.Context, postcodeArea string, tier domain.ServiceTier, location domain.ServiceLocation) ([]domain.Valeter, error)
}

type PGValeterStore struct {
	db *pgxpool.Pool
}

func NewValeterStore(db *pgxpool.Pool) ValeterStore {
	return &PGValeterStore{db: db}
}

const valeterColumns = `id, business_name, email, postcode, offers_budget, offers_standard, offers_premium,
	is_mobile, has_premises, status, rating, total_reviews, created_at`

func scanValeter(row pgx.Row) (*domain.Valeter, error) {
	var v domain.Valeter
	if err := row.Scan(
		&v.ID, &v.BusinessName, &v.Email, &v.Postcode, &v.OffersBudget, &v.OffersStandard, &v.OffersPremium,
		&v.IsMobile, &v.HasPremises, &v.Status, &v.Rating, &v.TotalReviews, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PGValeterStore) GetByID(ctx context.Context, id string) (*domain.Valeter, error) {
	v, err := scanValeter(s.db.QueryRow(ctx, `SELECT `+valeterColumns+` FROM valeters WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

// FindEligible matches approved valeters on outward postcode area, offered
// tier and location mode. Distance ranking is out of scope; the area prefix is
// the same filter the old platform indexed on.
func (s *PGValeterStore) FindEligible(ctx context.Context, postcodeArea string, tier domain.ServiceTier, location domain.ServiceLocation) ([]domain.Valeter, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+valeterColumns+` FROM valeters
		 WHERE status = $1
		   AND split_part(postcode, ' ', 1) = $2
		   AND (($3 = 'budget' AND offers_budget) OR ($3 = 'standard' AND offers_standard) OR ($3 = 'premium' AND offers_premium))
		   AND (($4 = 'mobile' AND is_mobile) OR ($4 = 'premises' AND has_premises))
		 ORDER BY rating DESC`,
		domain.ValeterStatusApproved, postcodeArea, string(tier), string(location))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var valeters []domain.Valeter
	for rows.Next() {
		v, err := scanValeter(rows)
		if err != nil {
			return nil, err
		}
		valeters = append(valeters, *v)
	}
	return valeters, rows.Err()
}

var _ ValeterStore = (*PGValeterStore)(nil)
