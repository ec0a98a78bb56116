// Package sqlite provides a SQLite-backed fund store for single-node
// deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"charity/internal/adapter/sqlite/migrations"
	"charity/internal/domain"
	"charity/internal/infra"
)

// Store persists projects and donations in SQLite.
//
// The handle is limited to one connection and transactions begin IMMEDIATE,
// so allocation calls are serialized by the database itself.
type Store struct {
	sqlDB  *sql.DB
	logger zerolog.Logger
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite fund store and applies embedded migrations.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	applied, err := infra.ApplyMigrations(ctx, sqlDB, migrations.FS, infra.PlaceholderQuestion)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info().Strs("migrations", applied).Msg("sqlite: migrations applied")
	}
	return &Store{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// WithinTx runs fn in one transaction and commits only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.FundTx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &fundTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("sqlite: rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FetchOpen returns the open set of kind outside of any allocation.
func (s *Store) FetchOpen(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	return fetchOpen(ctx, s.sqlDB, kind)
}

// ListProjects returns every project ordered by create date.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, description, full_amount, invested_amount, fully_invested, create_date, close_date
FROM charity_projects
ORDER BY create_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
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
	return items, rows.Err()
}

// ListDonations returns every donation ordered by create date.
func (s *Store) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	return s.listDonations(ctx, "")
}

// ListUserDonations returns the donations made by userID.
func (s *Store) ListUserDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	return s.listDonations(ctx, userID)
}

func (s *Store) listDonations(ctx context.Context, userID string) ([]domain.Donation, error) {
	query := `
SELECT id, user_id, comment, full_amount, invested_amount, fully_invested, create_date, close_date
FROM donations`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY create_date, id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		var (
			d         domain.Donation
			createdAt int64
			closedAt  sql.NullInt64
		)
		d.Kind = domain.KindDonation
		if err := rows.Scan(&d.ID, &d.UserID, &d.Comment, &d.FullAmount, &d.InvestedAmount, &d.FullyInvested, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		d.CreateDate = fromMillis(createdAt)
		d.CloseDate = nullMillis(closedAt)
		items = append(items, d)
	}
	return items, rows.Err()
}

type fundTx struct {
	q querier
}

func (t *fundTx) FetchOpen(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	return fetchOpen(ctx, t.q, kind)
}

func (t *fundTx) SaveInvestments(ctx context.Context, items []domain.Investable) error {
	for _, item := range items {
		table, err := tableFor(item.Kind)
		if err != nil {
			return err
		}
		var closedAt sql.NullInt64
		if item.CloseDate != nil {
			closedAt = sql.NullInt64{Int64: toMillis(*item.CloseDate), Valid: true}
		}
		res, err := t.q.ExecContext(ctx,
			`UPDATE `+table+` SET invested_amount = ?, fully_invested = ?, close_date = ? WHERE id = ?`,
			item.InvestedAmount, item.FullyInvested, closedAt, item.ID,
		)
		if err != nil {
			return fmt.Errorf("save %s %d: %w", item.Kind, item.ID, err)
		}
		if err := requireRow(res); err != nil {
			return fmt.Errorf("save %s %d: %w", item.Kind, item.ID, err)
		}
	}
	return nil
}

func (t *fundTx) InsertProject(ctx context.Context, project *domain.Project) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO charity_projects (name, description, full_amount, invested_amount, fully_invested, create_date)
		 VALUES (?, ?, ?, 0, 0, ?)`,
		project.Name, project.Description, project.FullAmount, toMillis(project.CreateDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert project id: %w", err)
	}
	project.ID = id
	return nil
}

func (t *fundTx) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	row := t.q.QueryRowContext(ctx, `
SELECT id, name, description, full_amount, invested_amount, fully_invested, create_date, close_date
FROM charity_projects
WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (t *fundTx) ProjectIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := t.q.QueryRowContext(ctx, `SELECT id FROM charity_projects WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("project by name: %w", err)
	}
	return id, true, nil
}

func (t *fundTx) UpdateProject(ctx context.Context, p *domain.Project) error {
	var closedAt sql.NullInt64
	if p.CloseDate != nil {
		closedAt = sql.NullInt64{Int64: toMillis(*p.CloseDate), Valid: true}
	}
	res, err := t.q.ExecContext(ctx, `
UPDATE charity_projects
SET name = ?, description = ?, full_amount = ?, invested_amount = ?, fully_invested = ?, close_date = ?
WHERE id = ?`,
		p.Name, p.Description, p.FullAmount, p.InvestedAmount, p.FullyInvested, closedAt, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return fmt.Errorf("update project %d: %w", p.ID, err)
	}
	return requireRow(res)
}

func (t *fundTx) DeleteProject(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM charity_projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return requireRow(res)
}

func (t *fundTx) InsertDonation(ctx context.Context, donation *domain.Donation) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO donations (user_id, comment, full_amount, invested_amount, fully_invested, create_date)
		 VALUES (?, ?, ?, 0, 0, ?)`,
		donation.UserID, donation.Comment, donation.FullAmount, toMillis(donation.CreateDate),
	)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert donation id: %w", err)
	}
	donation.ID = id
	return nil
}

func fetchOpen(ctx context.Context, q querier, kind domain.Kind) ([]domain.Investable, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
SELECT id, full_amount, invested_amount, fully_invested, create_date, close_date
FROM `+table+`
WHERE fully_invested = 0
ORDER BY create_date, id`)
	if err != nil {
		return nil, fmt.Errorf("fetch open %s: %w", kind, err)
	}
	defer rows.Close()

	items := []domain.Investable{}
	for rows.Next() {
		var (
			item      = domain.Investable{Kind: kind}
			createdAt int64
			closedAt  sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.FullAmount, &item.InvestedAmount, &item.FullyInvested, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan open %s: %w", kind, err)
		}
		item.CreateDate = fromMillis(createdAt)
		item.CloseDate = nullMillis(closedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p         domain.Project
		createdAt int64
		closedAt  sql.NullInt64
	)
	p.Kind = domain.KindProject
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.FullAmount, &p.InvestedAmount, &p.FullyInvested, &createdAt, &closedAt); err != nil {
		return nil, err
	}
	p.CreateDate = fromMillis(createdAt)
	p.CloseDate = nullMillis(closedAt)
	return &p, nil
}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindProject:
		return "charity_projects", nil
	case domain.KindDonation:
		return "donations", nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
}

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ domain.FundStore = (*Store)(nil)
