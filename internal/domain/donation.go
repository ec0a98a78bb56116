package domain

import "time"

// Donation represents a supporter contribution. Comment is optional.
type Donation struct {
	Investable
	UserID  string
	Comment string
}

// NewDonation returns an unsaved donation with zero investment.
func NewDonation(userID string, fullAmount int64, comment string, createdAt time.Time) *Donation {
	return &Donation{
		Investable: Investable{
			Kind:       KindDonation,
			FullAmount: fullAmount,
			CreateDate: createdAt,
		},
		UserID:  userID,
		Comment: comment,
	}
}
