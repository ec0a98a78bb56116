// Package service runs project and donation workflows on top of a fund store,
// invoking the allocation engine inside the same transaction as each write.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"charity/internal/allocation"
	"charity/internal/domain"
)

const maxProjectNameLen = 100

// Investing creates projects and donations and allocates money between them.
type Investing struct {
	store  domain.FundStore
	logger zerolog.Logger
	now    func() time.Time
}

// Option customizes an Investing service.
type Option func(*Investing)

// WithClock replaces the wall clock used for create and close dates.
func WithClock(now func() time.Time) Option {
	return func(s *Investing) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInvesting(store domain.FundStore, logger zerolog.Logger, opts ...Option) *Investing {
	s := &Investing{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProjectInput holds the caller-supplied fields of a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	FullAmount  int64
}

// ProjectUpdate holds the fields to change; nil fields are left as they are.
type ProjectUpdate struct {
	Name        *string
	Description *string
	FullAmount  *int64
}

// CreateDonationInput holds the caller-supplied fields of a new donation.
type CreateDonationInput struct {
	UserID     string
	FullAmount int64
	Comment    string
}

// NormalizeName trims surrounding space and converts name to NFC so that
// visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// CreateProject stores a new project and funds it from open donations.
func (s *Investing) CreateProject(ctx context.Context, in CreateProjectInput) (*domain.Project, error) {
	name := NormalizeName(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if in.FullAmount <= 0 {
		return nil, fmt.Errorf("%w: full_amount must be positive", domain.ErrInvalidInput)
	}

	var created *domain.Project
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.FundTx) error {
		if _, exists, err := tx.ProjectIDByName(ctx, name); err != nil {
			return err
		} else if exists {
			return domain.ErrDuplicateName
		}

		now := s.now()
		p := domain.NewProject(name, description, in.FullAmount, now)
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		target, err := s.invest(ctx, tx, p.Investable, now)
		if err != nil {
			return err
		}
		p.Investable = target
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateDonation stores a new donation and spends it on open projects.
func (s *Investing) CreateDonation(ctx context.Context, in CreateDonationInput) (*domain.Donation, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if in.FullAmount <= 0 {
		return nil, fmt.Errorf("%w: full_amount must be positive", domain.ErrInvalidInput)
	}

	var created *domain.Donation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.FundTx) error {
		now := s.now()
		d := domain.NewDonation(userID, in.FullAmount, strings.TrimSpace(in.Comment), now)
		if err := tx.InsertDonation(ctx, d); err != nil {
			return err
		}
		target, err := s.invest(ctx, tx, d.Investable, now)
		if err != nil {
			return err
		}
		d.Investable = target
		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// invest matches target against the open set of the opposite kind and
// writes back every record the allocation touched.
func (s *Investing) invest(ctx context.Context, tx domain.FundTx, target domain.Investable, now time.Time) (domain.Investable, error) {
	open, err := tx.FetchOpen(ctx, target.Kind.Opposite())
	if err != nil {
		return domain.Investable{}, fmt.Errorf("fetch open %s: %w", target.Kind.Opposite(), err)
	}

	res, err := allocation.Allocate(target, open, now)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(target.Kind)).Int64("id", target.ID).Msg("allocation rejected")
		return domain.Investable{}, err
	}
	if len(res.Touched) == 0 {
		s.logger.Debug().Str("kind", string(target.Kind)).Int64("id", target.ID).Msg("allocation: no open counterparties")
		return res.Target, nil
	}

	if err := tx.SaveInvestments(ctx, res.Changed()); err != nil {
		return domain.Investable{}, err
	}

	s.logger.Info().
		Str("kind", string(target.Kind)).
		Int64("id", target.ID).
		Int("touched", len(res.Touched)).
		Int64("moved", res.Moved()).
		Bool("closed", res.Target.FullyInvested).
		Msg("allocation applied")
	return res.Target, nil
}

// UpdateProject edits an open project.
func (s *Investing) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (*domain.Project, error) {
	var updated *domain.Project
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.FundTx) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			name := NormalizeName(*upd.Name)
			if err := validateName(name); err != nil {
				return err
			}
			otherID, exists, err := tx.ProjectIDByName(ctx, name)
			if err != nil {
				return err
			}
			if exists && otherID != p.ID {
				return domain.ErrDuplicateName
			}
			p.Name = name
		}
		if upd.Description != nil {
			description := strings.TrimSpace(*upd.Description)
			if description == "" {
				return fmt.Errorf("%w: description must not be empty", domain.ErrInvalidInput)
			}
			p.Description = description
		}
		if upd.FullAmount != nil {
			amount := *upd.FullAmount
			switch {
			case amount <= 0:
				return fmt.Errorf("%w: full_amount must be positive", domain.ErrInvalidInput)
			case amount < p.InvestedAmount:
				return domain.ErrAmountBelowInvested
			case amount < p.FullAmount:
				return domain.ErrAmountDecrease
			}
			p.FullAmount = amount
		}
		if p.FullyInvested {
			return domain.ErrProjectClosed
		}

		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProject removes a project that has not received any money.
func (s *Investing) DeleteProject(ctx context.Context, id int64) (*domain.Project, error) {
	var deleted *domain.Project
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.FundTx) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.InvestedAmount > 0 {
			return domain.ErrProjectInvested
		}
		if err := tx.DeleteProject(ctx, id); err != nil {
			return err
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Investing) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Investing) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	return s.store.ListDonations(ctx)
}

func (s *Investing) ListUserDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.store.ListUserDonations(ctx, userID)
}

// OpenSet returns the records of kind still taking part in allocation.
func (s *Investing) OpenSet(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
	}
	return s.store.FetchOpen(ctx, kind)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxProjectNameLen {
		return fmt.Errorf("%w: name longer than %d characters", domain.ErrInvalidInput, maxProjectNameLen)
	}
	return nil
}
