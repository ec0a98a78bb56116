package handlers

import (
	"net/http"
	"time"

	"charity/internal/domain"
	"charity/internal/service"
)

type projectCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FullAmount  int64  `json:"full_amount"`
}

type projectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	FullAmount  *int64  `json:"full_amount"`
}

type projectResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	FullAmount     int64      `json:"full_amount"`
	InvestedAmount int64      `json:"invested_amount"`
	FullyInvested  bool       `json:"fully_invested"`
	CreateDate     time.Time  `json:"create_date"`
	CloseDate      *time.Time `json:"close_date"`
}

func toProjectResponse(p domain.Project) projectResponse {
	return projectResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		FullAmount:     p.FullAmount,
		InvestedAmount: p.InvestedAmount,
		FullyInvested:  p.FullyInvested,
		CreateDate:     p.CreateDate,
		CloseDate:      p.CloseDate,
	}
}

func (a *App) ProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := a.Investing.ListProjects(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		items = append(items, toProjectResponse(p))
	}
	a.json(w, http.StatusOK, items)
}

func (a *App) ProjectsCreate(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Investing.CreateProject(r.Context(), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		FullAmount:  req.FullAmount,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toProjectResponse(*p))
}

func (a *App) ProjectsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req projectUpdateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Investing.UpdateProject(r.Context(), id, service.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		FullAmount:  req.FullAmount,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toProjectResponse(*p))
}

func (a *App) ProjectsDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Investing.DeleteProject(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toProjectResponse(*p))
}
