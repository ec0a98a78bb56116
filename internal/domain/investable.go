package domain

import (
	"fmt"
	"time"
)

// Kind discriminates the two investable streams.
type Kind string

const (
	KindProject  Kind = "project"
	KindDonation Kind = "donation"
)

// Valid reports whether k names a known stream.
func (k Kind) Valid() bool {
	return k == KindProject || k == KindDonation
}

// Opposite returns the counterparty stream of k.
func (k Kind) Opposite() Kind {
	switch k {
	case KindProject:
		return KindDonation
	case KindDonation:
		return KindProject
	}
	return ""
}

// ParseKind converts user input such as "project" or "donation" into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Investable is the shape shared by projects (demand) and donations (supply)
// for allocation purposes.
type Investable struct {
	Kind           Kind
	ID             int64
	FullAmount     int64
	InvestedAmount int64
	FullyInvested  bool
	CreateDate     time.Time
	CloseDate      *time.Time
}

// Remaining is the amount still missing (projects) or still available (donations).
func (e Investable) Remaining() int64 {
	return e.FullAmount - e.InvestedAmount
}

// Open reports whether the record still takes part in allocation.
func (e Investable) Open() bool {
	return !e.FullyInvested
}

// Before orders records by create date, then id.
func (e Investable) Before(other Investable) bool {
	if !e.CreateDate.Equal(other.CreateDate) {
		return e.CreateDate.Before(other.CreateDate)
	}
	return e.ID < other.ID
}
