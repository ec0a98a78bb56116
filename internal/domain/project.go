package domain

import "time"

// Project is a fundraising target.
type Project struct {
	Investable
	Name        string
	Description string
}

// NewProject returns an unsaved project with zero investment.
func NewProject(name, description string, fullAmount int64, createdAt time.Time) *Project {
	return &Project{
		Investable: Investable{
			Kind:       KindProject,
			FullAmount: fullAmount,
			CreateDate: createdAt,
		},
		Name:        name,
		Description: description,
	}
}
