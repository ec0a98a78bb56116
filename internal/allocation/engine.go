// Package allocation matches a newly created project or donation against the
// open records of the opposite stream in creation order.
//
// The package performs no I/O. Callers read the open set, call Allocate and
// persist the returned records in the same transaction.
package allocation

import (
	"fmt"
	"time"

	"charity/internal/domain"
)

// Transfer is the amount moved between the new record and one counterparty.
type Transfer struct {
	CounterpartyID int64
	Amount         int64
}

// Result holds updated copies of every record the allocation touched.
type Result struct {
	Target    domain.Investable
	Touched   []domain.Investable
	Transfers []Transfer
}

// Moved returns the total amount transferred by the call.
func (r Result) Moved() int64 {
	var sum int64
	for _, t := range r.Transfers {
		sum += t.Amount
	}
	return sum
}

// Changed returns the records that must be written back: the target followed
// by every touched counterparty.
func (r Result) Changed() []domain.Investable {
	out := make([]domain.Investable, 0, len(r.Touched)+1)
	out = append(out, r.Target)
	return append(out, r.Touched...)
}

// Allocate distributes target's remaining amount over open, which must be the
// open records of the opposite kind ordered by create date then id. Records
// after the point where target runs out are not included in the result.
// Inputs are never modified.
//
// A malformed input is a caller defect and yields an error wrapping
// domain.ErrInvariantViolation; nothing is allocated in that case.
func Allocate(target domain.Investable, open []domain.Investable, now time.Time) (Result, error) {
	if err := checkTarget(target); err != nil {
		return Result{}, err
	}
	if err := checkOpenSet(target.Kind.Opposite(), open); err != nil {
		return Result{}, err
	}

	res := Result{Target: target}
	if len(open) == 0 {
		return res, nil
	}

	remaining := res.Target.Remaining()
	for _, c := range open {
		transfer := min(c.Remaining(), remaining)

		c.InvestedAmount += transfer
		res.Target.InvestedAmount += transfer
		remaining -= transfer

		if c.InvestedAmount == c.FullAmount {
			closeRecord(&c, now)
		}
		res.Touched = append(res.Touched, c)
		res.Transfers = append(res.Transfers, Transfer{CounterpartyID: c.ID, Amount: transfer})

		if remaining == 0 {
			closeRecord(&res.Target, now)
			break
		}
	}
	return res, nil
}

func closeRecord(e *domain.Investable, now time.Time) {
	closedAt := now
	e.FullyInvested = true
	e.CloseDate = &closedAt
}

func checkTarget(target domain.Investable) error {
	if !target.Kind.Valid() {
		return violation("target %d has unknown kind %q", target.ID, target.Kind)
	}
	if target.FullAmount <= 0 {
		return violation("%s %d has non-positive full amount %d", target.Kind, target.ID, target.FullAmount)
	}
	if target.FullyInvested {
		return violation("%s %d is already closed", target.Kind, target.ID)
	}
	if target.InvestedAmount < 0 || target.InvestedAmount >= target.FullAmount {
		return violation("%s %d has invested amount %d outside [0, %d)", target.Kind, target.ID, target.InvestedAmount, target.FullAmount)
	}
	return nil
}

func checkOpenSet(kind domain.Kind, open []domain.Investable) error {
	seen := make(map[int64]struct{}, len(open))
	for i, c := range open {
		if c.Kind != kind {
			return violation("open set holds %s %d, want kind %s", c.Kind, c.ID, kind)
		}
		if c.FullyInvested {
			return violation("open set holds closed %s %d", c.Kind, c.ID)
		}
		if c.InvestedAmount < 0 || c.InvestedAmount >= c.FullAmount {
			return violation("%s %d has invested amount %d outside [0, %d)", c.Kind, c.ID, c.InvestedAmount, c.FullAmount)
		}
		if _, dup := seen[c.ID]; dup {
			return violation("open set holds %s %d twice", c.Kind, c.ID)
		}
		seen[c.ID] = struct{}{}
		if i > 0 && !open[i-1].Before(c) {
			return violation("open set is not ordered at %s %d", c.Kind, c.ID)
		}
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvariantViolation, fmt.Sprintf(format, args...))
}
