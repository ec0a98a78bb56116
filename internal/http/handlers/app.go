package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"charity/internal/domain"
	"charity/internal/middleware"
	"charity/internal/service"
)

const maxBodyBytes = 1 << 20

type App struct {
	Investing *service.Investing
	Logger    zerolog.Logger
}

func NewApp(investing *service.Investing, logger zerolog.Logger) *App {
	return &App{Investing: investing, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// fail maps a service error onto a status code and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "project not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "not allowed")
	case errors.Is(err, domain.ErrDuplicateName):
		a.error(w, http.StatusConflict, "duplicate_name", err.Error())
	case errors.Is(err, domain.ErrProjectClosed):
		a.error(w, http.StatusBadRequest, "project_closed", err.Error())
	case errors.Is(err, domain.ErrProjectInvested):
		a.error(w, http.StatusBadRequest, "project_invested", err.Error())
	case errors.Is(err, domain.ErrAmountBelowInvested):
		a.error(w, http.StatusBadRequest, "amount_below_invested", err.Error())
	case errors.Is(err, domain.ErrAmountDecrease):
		a.error(w, http.StatusBadRequest, "amount_decrease", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decode reads a single JSON object and rejects unknown fields.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", domain.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid project id", domain.ErrInvalidInput)
	}
	return id, nil
}
