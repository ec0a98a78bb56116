package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"charity/internal/domain"
	"charity/internal/infra"
	"charity/internal/sqlinline"
)

// PostgreSQL error codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type pgxDB interface {
	infra.SQLExecutor
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// FundStorePG implements domain.FundStore using PostgreSQL.
//
// Every WithinTx call runs in a serializable transaction and the open-set
// reads lock their rows, so two allocations never see the same open
// counterparty. Serialization failures and deadlocks re-run the whole
// callback on a fresh snapshot.
type FundStorePG struct {
	db         pgxDB
	runner     *infra.SQLRunner
	logger     zerolog.Logger
	maxTries   uint
	newBackOff func() backoff.BackOff
	closeFn    func()
}

// NewFundStore creates a fund store on top of pool. maxRetries bounds how
// many times a transaction is re-run after a serialization failure.
func NewFundStore(pool *pgxpool.Pool, logger zerolog.Logger, maxRetries uint) *FundStorePG {
	s := newFundStore(pool, logger, maxRetries)
	s.closeFn = pool.Close
	return s
}

func newFundStore(db pgxDB, logger zerolog.Logger, maxRetries uint) *FundStorePG {
	return &FundStorePG{
		db:       db,
		runner:   infra.NewSQLRunner(db, logger),
		logger:   logger,
		maxTries: maxRetries + 1,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

// WithinTx runs fn in a serializable transaction.
func (s *FundStorePG) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.FundTx) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &fundTxPG{run: s.runner.WithTx(tx)})
		})
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("fund tx: retrying after serialization failure")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.maxTries))
	return err
}

// IsRetryable reports whether err is a PostgreSQL serialization failure or
// deadlock, after which the transaction can be re-run from the start.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// FetchOpen returns the open set of kind without locking it.
func (s *FundStorePG) FetchOpen(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	query, err := openQuery(kind, false)
	if err != nil {
		return nil, err
	}
	return queryInvestables(ctx, s.runner, kind, query)
}

// ListProjects returns every project ordered by create date.
func (s *FundStorePG) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Close releases the connection pool.
func (s *FundStorePG) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

type fundTxPG struct {
	run *infra.SQLRunner
}

func (t *fundTxPG) FetchOpen(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	query, err := openQuery(kind, true)
	if err != nil {
		return nil, err
	}
	return queryInvestables(ctx, t.run, kind, query)
}

func (t *fundTxPG) SaveInvestments(ctx context.Context, items []domain.Investable) error {
	for _, item := range items {
		var query string
		switch item.Kind {
		case domain.KindProject:
			query = sqlinline.QUpdateProjectInvestment
		case domain.KindDonation:
			query = sqlinline.QUpdateDonationInvestment
		default:
			return fmt.Errorf("%w: unknown kind %q", domain.ErrInvariantViolation, item.Kind)
		}
		tag, err := t.run.Exec(ctx, query, item.ID, item.InvestedAmount, item.FullyInvested, item.CloseDate)
		if err != nil {
			return fmt.Errorf("save %s %d: %w", item.Kind, item.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("save %s %d: %w", item.Kind, item.ID, domain.ErrNotFound)
		}
	}
	return nil
}

func (t *fundTxPG) InsertProject(ctx context.Context, project *domain.Project) error {
	row := t.run.QueryRow(ctx, sqlinline.QInsertProject, project.Name, project.Description, project.FullAmount, project.CreateDate)
	if err := row.Scan(&project.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (t *fundTxPG) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	p, err := scanProject(t.run.QueryRow(ctx, sqlinline.QSelectProjectForUpdate, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (t *fundTxPG) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := t.run.QueryRow(ctx, sqlinline.QSelectProjectIDByName, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (t *fundTxPG) UpdateProject(ctx context.Context, p *domain.Project) error {
	tag, err := t.run.Exec(ctx, sqlinline.QUpdateProject, p.ID, p.Name, p.Description, p.FullAmount, p.InvestedAmount, p.FullyInvested, p.CloseDate)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("update project %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *fundTxPG) DeleteProject(ctx context.Context, id int64) error {
	tag, err := t.run.Exec(ctx, sqlinline.QDeleteProject, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func openQuery(kind domain.Kind, lock bool) (string, error) {
	switch {
	case kind == domain.KindProject && lock:
		return sqlinline.QOpenProjectsForUpdate, nil
	case kind == domain.KindProject:
		return sqlinline.QOpenProjects, nil
	case kind == domain.KindDonation && lock:
		return sqlinline.QOpenDonationsForUpdate, nil
	case kind == domain.KindDonation:
		return sqlinline.QOpenDonations, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
}

func queryInvestables(ctx context.Context, q infra.SQLExecutor, kind domain.Kind, query string) ([]domain.Investable, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Investable{}
	for rows.Next() {
		item := domain.Investable{Kind: kind}
		if err := rows.Scan(&item.ID, &item.FullAmount, &item.InvestedAmount, &item.FullyInvested, &item.CreateDate, &item.CloseDate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	p.Kind = domain.KindProject
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.FullAmount, &p.InvestedAmount, &p.FullyInvested, &p.CreateDate, &p.CloseDate); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.FundStore = (*FundStorePG)(nil)
