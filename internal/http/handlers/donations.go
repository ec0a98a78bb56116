package handlers

import (
	"net/http"
	"time"

	"charity/internal/domain"
	"charity/internal/middleware"
	"charity/internal/service"
)

type donationRequest struct {
	FullAmount int64  `json:"full_amount"`
	Comment    string `json:"comment"`
}

// donationResponse is what a donor sees of their own donations.
type donationResponse struct {
	ID         int64     `json:"id"`
	Comment    string    `json:"comment"`
	FullAmount int64     `json:"full_amount"`
	CreateDate time.Time `json:"create_date"`
}

type donationFullResponse struct {
	donationResponse
	UserID         string     `json:"user_id"`
	InvestedAmount int64      `json:"invested_amount"`
	FullyInvested  bool       `json:"fully_invested"`
	CloseDate      *time.Time `json:"close_date"`
}

func toDonationResponse(d domain.Donation) donationResponse {
	return donationResponse{
		ID:         d.ID,
		Comment:    d.Comment,
		FullAmount: d.FullAmount,
		CreateDate: d.CreateDate,
	}
}

func (a *App) currentUserID(r *http.Request) string {
	user, _ := middleware.UserFromContext(r.Context())
	return user.ID
}

func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.Investing.CreateDonation(r.Context(), service.CreateDonationInput{
		UserID:     a.currentUserID(r),
		FullAmount: req.FullAmount,
		Comment:    req.Comment,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toDonationResponse(*d))
}

func (a *App) DonationsMine(w http.ResponseWriter, r *http.Request) {
	donations, err := a.Investing.ListUserDonations(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]donationResponse, 0, len(donations))
	for _, d := range donations {
		items = append(items, toDonationResponse(d))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) DonationsList(w http.ResponseWriter, r *http.Request) {
	donations, err := a.Investing.ListDonations(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]donationFullResponse, 0, len(donations))
	for _, d := range donations {
		items = append(items, donationFullResponse{
			donationResponse: toDonationResponse(d),
			UserID:           d.UserID,
			InvestedAmount:   d.InvestedAmount,
			FullyInvested:    d.FullyInvested,
			CloseDate:        d.CloseDate,
		})
	}
	a.json(w, http.StatusOK, items)
}
