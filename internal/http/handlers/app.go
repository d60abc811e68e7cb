package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/generation"
	"ugcvideo/internal/i18n"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/middleware"
	"ugcvideo/internal/validation"
)

type App struct {
	Generations *generation.Service
	Ledger      domain.LedgerRepository
	Logger      *infra.Logger
	// Ping reports database health; nil skips the check.
	Ping func(ctx context.Context) error
	// Static serves locally stored artifacts; nil when storage is remote.
	Static http.Handler
}

func NewApp(svc *generation.Service, ledger domain.LedgerRepository, logger *infra.Logger) *App {
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	return &App{Generations: svc, Ledger: ledger, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details []validation.Violation `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) locale(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context())
}

func (a *App) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", i18n.T(a.locale(r), i18n.MsgUnauthorized))
		return "", false
	}
	return userID, true
}

// fail maps service errors onto responses. Unexpected errors are logged in
// full and answered with a generic message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	loc := a.locale(r)
	var insufficient *generation.InsufficientCreditsError
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.json(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: i18n.T(loc, i18n.MsgValidationFailed),
			Details: validation.Violations(err),
		})
	case errors.As(err, &insufficient):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", i18n.T(loc, i18n.MsgInsufficientCredits, insufficient.Required))
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", i18n.T(loc, i18n.MsgGenerationNotFound))
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", i18n.T(loc, i18n.MsgConflict))
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", i18n.T(loc, internalMsg))
	}
}
