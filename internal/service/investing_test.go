package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"charity/internal/adapter/sqlite"
	"charity/internal/domain"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "fund.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, store domain.FundStore) *Investing {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewInvesting(store, zerolog.Nop(), WithClock(clock.Now))
}

func mustProject(t *testing.T, svc *Investing, name string, amount int64) *domain.Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), CreateProjectInput{Name: name, Description: name + " description", FullAmount: amount})
	if err != nil {
		t.Fatalf("CreateProject(%q): %v", name, err)
	}
	return p
}

func mustDonation(t *testing.T, svc *Investing, user string, amount int64) *domain.Donation {
	t.Helper()
	d, err := svc.CreateDonation(context.Background(), CreateDonationInput{UserID: user, FullAmount: amount})
	if err != nil {
		t.Fatalf("CreateDonation(%d): %v", amount, err)
	}
	return d
}

func TestDonationWithoutProjectsStaysOpen(t *testing.T) {
	svc := newTestService(t, openTestStore(t))

	d := mustDonation(t, svc, "u1", 300)
	if d.InvestedAmount != 0 || d.FullyInvested || d.CloseDate != nil {
		t.Fatalf("unexpected donation: %+v", d)
	}
	open, err := svc.OpenSet(context.Background(), domain.KindDonation)
	if err != nil {
		t.Fatalf("OpenSet: %v", err)
	}
	if len(open) != 1 || open[0].ID != d.ID {
		t.Fatalf("open donations = %+v", open)
	}
}

func TestProjectDrainsEarlierDonationsFIFO(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	d1 := mustDonation(t, svc, "u1", 100)
	d2 := mustDonation(t, svc, "u2", 50)
	d3 := mustDonation(t, svc, "u1", 500)

	p := mustProject(t, svc, "Shelter", 200)
	if !p.FullyInvested || p.InvestedAmount != 200 || p.CloseDate == nil {
		t.Fatalf("project should be fully funded: %+v", p)
	}

	donations, err := svc.ListDonations(ctx)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	byID := map[int64]domain.Donation{}
	for _, d := range donations {
		byID[d.ID] = d
	}
	if got := byID[d1.ID]; !got.FullyInvested || got.InvestedAmount != 100 {
		t.Fatalf("first donation should be spent: %+v", got)
	}
	if got := byID[d2.ID]; !got.FullyInvested || got.InvestedAmount != 50 {
		t.Fatalf("second donation should be spent: %+v", got)
	}
	if got := byID[d3.ID]; got.FullyInvested || got.InvestedAmount != 50 {
		t.Fatalf("third donation should have 50 invested: %+v", got)
	}
}

func TestDonationFundsProjectsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	p1 := mustProject(t, svc, "First", 100)
	p2 := mustProject(t, svc, "Second", 50)
	p3 := mustProject(t, svc, "Third", 70)

	d := mustDonation(t, svc, "u1", 250)
	if d.InvestedAmount != 220 || d.FullyInvested {
		t.Fatalf("donation should keep 30 available: %+v", d)
	}

	projects, err := svc.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("projects = %d, want 3", len(projects))
	}
	for i, want := range []int64{p1.ID, p2.ID, p3.ID} {
		if projects[i].ID != want || !projects[i].FullyInvested {
			t.Fatalf("project[%d] = %+v", i, projects[i])
		}
	}

	p4 := mustProject(t, svc, "Fourth", 100)
	if p4.InvestedAmount != 30 || p4.FullyInvested {
		t.Fatalf("new project should pick up the 30 left: %+v", p4)
	}
	open, _ := svc.OpenSet(ctx, domain.KindDonation)
	if len(open) != 0 {
		t.Fatalf("no donations should stay open: %+v", open)
	}
}

func TestUndersupplyKeepsProjectOpen(t *testing.T) {
	svc := newTestService(t, openTestStore(t))

	mustProject(t, svc, "Roof", 100)
	d := mustDonation(t, svc, "u1", 30)
	if !d.FullyInvested || d.InvestedAmount != 30 {
		t.Fatalf("donation should close: %+v", d)
	}
	open, err := svc.OpenSet(context.Background(), domain.KindProject)
	if err != nil {
		t.Fatalf("OpenSet: %v", err)
	}
	if len(open) != 1 || open[0].InvestedAmount != 30 {
		t.Fatalf("project should stay open with 30: %+v", open)
	}
}

type snapshot struct {
	invested  int64
	closed    bool
	closeDate *time.Time
}

func TestAllocationSequenceKeepsLedgerInvariants(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	steps := []struct {
		project bool
		amount  int64
	}{
		{false, 40}, {true, 100}, {false, 30}, {false, 45}, {true, 10}, {true, 75},
		{false, 500}, {true, 60}, {true, 1}, {false, 7}, {true, 440}, {false, 3},
	}

	seen := map[string]snapshot{}
	for i, step := range steps {
		if step.project {
			mustProject(t, svc, fmt.Sprintf("Project %d", i), step.amount)
		} else {
			mustDonation(t, svc, "donor", step.amount)
		}

		projects, err := svc.ListProjects(ctx)
		if err != nil {
			t.Fatalf("ListProjects: %v", err)
		}
		donations, err := svc.ListDonations(ctx)
		if err != nil {
			t.Fatalf("ListDonations: %v", err)
		}

		var records []domain.Investable
		var projectSum, donationSum int64
		var openProjects, openDonations int
		for _, p := range projects {
			records = append(records, p.Investable)
			projectSum += p.InvestedAmount
			if p.Open() {
				openProjects++
			}
		}
		for _, d := range donations {
			records = append(records, d.Investable)
			donationSum += d.InvestedAmount
			if d.Open() {
				openDonations++
			}
		}

		if projectSum != donationSum {
			t.Fatalf("step %d: projects received %d but donations gave %d", i, projectSum, donationSum)
		}
		if openProjects > 0 && openDonations > 0 {
			t.Fatalf("step %d: %d open projects coexist with %d open donations", i, openProjects, openDonations)
		}
		for _, r := range records {
			if r.InvestedAmount < 0 || r.InvestedAmount > r.FullAmount {
				t.Fatalf("step %d: %s %d out of bounds: %+v", i, r.Kind, r.ID, r)
			}
			if r.FullyInvested != (r.InvestedAmount == r.FullAmount) {
				t.Fatalf("step %d: %s %d closed flag mismatch: %+v", i, r.Kind, r.ID, r)
			}
			if r.FullyInvested != (r.CloseDate != nil) {
				t.Fatalf("step %d: %s %d close date mismatch: %+v", i, r.Kind, r.ID, r)
			}
			key := fmt.Sprintf("%s/%d", r.Kind, r.ID)
			if prev, ok := seen[key]; ok {
				if r.InvestedAmount < prev.invested {
					t.Fatalf("step %d: %s %d invested decreased %d -> %d", i, r.Kind, r.ID, prev.invested, r.InvestedAmount)
				}
				if prev.closed && !r.FullyInvested {
					t.Fatalf("step %d: %s %d reopened", i, r.Kind, r.ID)
				}
				if prev.closeDate != nil && !prev.closeDate.Equal(*r.CloseDate) {
					t.Fatalf("step %d: %s %d close date overwritten", i, r.Kind, r.ID)
				}
			}
			seen[key] = snapshot{invested: r.InvestedAmount, closed: r.FullyInvested, closeDate: r.CloseDate}
		}
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc := newTestService(t, openTestStore(t))

	cases := []CreateProjectInput{
		{Name: "", Description: "d", FullAmount: 10},
		{Name: "   ", Description: "d", FullAmount: 10},
		{Name: "n", Description: "", FullAmount: 10},
		{Name: "n", Description: "d", FullAmount: 0},
		{Name: "n", Description: "d", FullAmount: -1},
		{Name: strings.Repeat("x", 101), Description: "d", FullAmount: 1},
	}
	for _, in := range cases {
		if _, err := svc.CreateProject(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("CreateProject(%+v) error = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestCreateProjectRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t, openTestStore(t))

	mustProject(t, svc, "Kittens", 100)
	_, err := svc.CreateProject(context.Background(), CreateProjectInput{Name: "  Kittens ", Description: "again", FullAmount: 5})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("error = %v, want ErrDuplicateName", err)
	}
}

func TestNormalizeNameComposesUnicode(t *testing.T) {
	decomposed := "Cafe\u0301"
	if NormalizeName(" "+decomposed+" ") != "Caf\u00e9" {
		t.Fatalf("NormalizeName(%q) = %q", decomposed, NormalizeName(decomposed))
	}
}

func TestCreateDonationValidation(t *testing.T) {
	svc := newTestService(t, openTestStore(t))

	if _, err := svc.CreateDonation(context.Background(), CreateDonationInput{UserID: "u", FullAmount: 0}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CreateDonation(context.Background(), CreateDonationInput{FullAmount: 10}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateProjectRules(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	p := mustProject(t, svc, "Food", 100)
	mustProject(t, svc, "Toys", 100)
	mustDonation(t, svc, "u1", 40)

	name := "Toys"
	if _, err := svc.UpdateProject(ctx, p.ID, ProjectUpdate{Name: &name}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("duplicate name error = %v", err)
	}
	below := int64(30)
	if _, err := svc.UpdateProject(ctx, p.ID, ProjectUpdate{FullAmount: &below}); !errors.Is(err, domain.ErrAmountBelowInvested) {
		t.Fatalf("below invested error = %v", err)
	}
	lower := int64(90)
	if _, err := svc.UpdateProject(ctx, p.ID, ProjectUpdate{FullAmount: &lower}); !errors.Is(err, domain.ErrAmountDecrease) {
		t.Fatalf("decrease error = %v", err)
	}
	if _, err := svc.UpdateProject(ctx, 999, ProjectUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing project error = %v", err)
	}

	same := "Food"
	higher := int64(150)
	desc := "Dry food for the winter"
	got, err := svc.UpdateProject(ctx, p.ID, ProjectUpdate{Name: &same, Description: &desc, FullAmount: &higher})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.FullAmount != 150 || got.Description != desc || got.InvestedAmount != 40 {
		t.Fatalf("unexpected project: %+v", got)
	}

	mustDonation(t, svc, "u2", 110)
	if _, err := svc.UpdateProject(ctx, p.ID, ProjectUpdate{Description: &desc}); !errors.Is(err, domain.ErrProjectClosed) {
		t.Fatalf("closed project error = %v", err)
	}
}

func TestDeleteProjectRules(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	funded := mustProject(t, svc, "Funded", 100)
	mustDonation(t, svc, "u1", 10)
	empty := mustProject(t, svc, "Empty", 100)

	if _, err := svc.DeleteProject(ctx, funded.ID); !errors.Is(err, domain.ErrProjectInvested) {
		t.Fatalf("delete funded error = %v", err)
	}
	got, err := svc.DeleteProject(ctx, empty.ID)
	if err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got.ID != empty.ID || got.Name != "Empty" {
		t.Fatalf("deleted = %+v", got)
	}
	if _, err := svc.DeleteProject(ctx, empty.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete error = %v", err)
	}
}

func TestListUserDonations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, openTestStore(t))

	mustDonation(t, svc, "alice", 10)
	mustDonation(t, svc, "bob", 20)
	mustDonation(t, svc, "alice", 30)

	mine, err := svc.ListUserDonations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListUserDonations: %v", err)
	}
	if len(mine) != 2 || mine[0].FullAmount != 10 || mine[1].FullAmount != 30 {
		t.Fatalf("alice donations = %+v", mine)
	}
	if _, err := svc.ListUserDonations(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

// failingStore wraps a real store and injects failures into its transactions.
type failingStore struct {
	domain.FundStore
	saveErr   error
	extraOpen *domain.Investable
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.FundTx) error) error {
	return f.FundStore.WithinTx(ctx, func(ctx context.Context, tx domain.FundTx) error {
		return fn(ctx, &failingTx{FundTx: tx, store: f})
	})
}

type failingTx struct {
	domain.FundTx
	store *failingStore
}

func (t *failingTx) SaveInvestments(ctx context.Context, items []domain.Investable) error {
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	return t.FundTx.SaveInvestments(ctx, items)
}

func (t *failingTx) FetchOpen(ctx context.Context, kind domain.Kind) ([]domain.Investable, error) {
	open, err := t.FundTx.FetchOpen(ctx, kind)
	if err != nil || t.store.extraOpen == nil {
		return open, err
	}
	return append(open, *t.store.extraOpen), nil
}

func TestCommitFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	base := openTestStore(t)
	svc := newTestService(t, base)
	mustDonation(t, svc, "u1", 100)

	boom := errors.New("disk full")
	failing := newTestService(t, &failingStore{FundStore: base, saveErr: boom})
	if _, err := failing.CreateProject(ctx, CreateProjectInput{Name: "Doomed", Description: "d", FullAmount: 50}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	projects, err := svc.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("project should be rolled back: %+v", projects)
	}
	open, _ := svc.OpenSet(ctx, domain.KindDonation)
	if len(open) != 1 || open[0].InvestedAmount != 0 {
		t.Fatalf("donation should be untouched: %+v", open)
	}
}

func TestInvariantViolationFailsTheWholeCall(t *testing.T) {
	ctx := context.Background()
	base := openTestStore(t)
	svc := newTestService(t, base)
	mustProject(t, svc, "Real", 100)

	closedAt := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	bogus := &domain.Investable{Kind: domain.KindProject, ID: 999, FullAmount: 10, InvestedAmount: 10, FullyInvested: true, CreateDate: closedAt.Add(24 * 365 * time.Hour * 5), CloseDate: &closedAt}
	failing := newTestService(t, &failingStore{FundStore: base, extraOpen: bogus})

	if _, err := failing.CreateDonation(ctx, CreateDonationInput{UserID: "u1", FullAmount: 20}); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
	donations, _ := svc.ListDonations(ctx)
	if len(donations) != 0 {
		t.Fatalf("donation should be rolled back: %+v", donations)
	}
	open, _ := svc.OpenSet(ctx, domain.KindProject)
	if len(open) != 1 || open[0].InvestedAmount != 0 {
		t.Fatalf("project should be untouched: %+v", open)
	}
}
