package domain

import "context"

// FundTx is one serialized unit of work against the fund store. Every read
// made through it observes the same snapshot, and every write becomes
// visible together when the surrounding WithinTx returns nil.
type FundTx interface {
	// FetchOpen returns all records of kind that are not fully invested,
	// ordered by create date then id. An empty result is not an error.
	FetchOpen(ctx context.Context, kind Kind) ([]Investable, error)
	// SaveInvestments writes invested_amount, fully_invested and close_date
	// of every given record.
	SaveInvestments(ctx context.Context, items []Investable) error

	InsertProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	ProjectIDByName(ctx context.Context, name string) (int64, bool, error)
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id int64) error

	InsertDonation(ctx context.Context, donation *Donation) error
}

// FundStore persists projects and donations.
type FundStore interface {
	// WithinTx runs fn inside one transaction. When fn returns an error
	// nothing it wrote is kept.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx FundTx) error) error

	ListProjects(ctx context.Context) ([]Project, error)
	ListDonations(ctx context.Context) ([]Donation, error)
	ListUserDonations(ctx context.Context, userID string) ([]Donation, error)
	FetchOpen(ctx context.Context, kind Kind) ([]Investable, error)
	Close() error
}
