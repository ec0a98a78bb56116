package repo

import (
	"context"
	"fmt"

	"charity/internal/domain"
	"charity/internal/sqlinline"
)

// ListDonations returns every donation ordered by create date.
func (s *FundStorePG) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	return s.listDonations(ctx, sqlinline.QListDonations)
}

// ListUserDonations returns the donations made by userID.
func (s *FundStorePG) ListUserDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	return s.listDonations(ctx, sqlinline.QListUserDonations, userID)
}

func (s *FundStorePG) listDonations(ctx context.Context, query string, args ...any) ([]domain.Donation, error) {
	rows, err := s.runner.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		var d domain.Donation
		d.Kind = domain.KindDonation
		if err := rows.Scan(&d.ID, &d.UserID, &d.Comment, &d.FullAmount, &d.InvestedAmount, &d.FullyInvested, &d.CreateDate, &d.CloseDate); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *fundTxPG) InsertDonation(ctx context.Context, donation *domain.Donation) error {
	row := t.run.QueryRow(ctx, sqlinline.QInsertDonation, donation.UserID, donation.Comment, donation.FullAmount, donation.CreateDate)
	if err := row.Scan(&donation.ID); err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}
