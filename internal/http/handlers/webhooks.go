package handlers

import (
	"errors"
	"io"
	"net/http"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/validation"
	"ugcvideo/internal/webhook"
)

type webhookError struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type webhookAck struct {
	Success      bool                    `json:"success"`
	Message      string                  `json:"message"`
	GenerationID string                  `json:"generation_id"`
	Status       domain.GenerationStatus `json:"status"`
	CurrentStage int                     `json:"current_stage"`
}

// GenerationStatusWebhook applies a processor status callback. Only the
// fields present in the payload change, so replays are harmless. The
// secret is checked by middleware before this runs.
func (a *App) GenerationStatusWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		a.json(w, http.StatusBadRequest, webhookError{Error: "Invalid webhook payload"})
		return
	}
	payload, err := webhook.Parse(body)
	if err != nil {
		a.json(w, http.StatusBadRequest, webhookError{Error: "Invalid webhook payload", Details: validation.Violations(err)})
		return
	}

	g, err := a.Generations.ApplyUpdate(r.Context(), payload.GenerationID, payload.Update())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		a.json(w, http.StatusNotFound, webhookError{Error: "Video generation not found"})
		return
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		a.Logger.Warn().Err(err).
			Str("generation_id", payload.GenerationID).
			Str("status", string(payload.Status)).
			Msg("webhook update rejected")
		a.json(w, http.StatusConflict, webhookError{Error: "Status transition not allowed", Details: err.Error()})
		return
	default:
		a.Logger.Error().Err(err).Str("generation_id", payload.GenerationID).Msg("webhook update failed")
		a.json(w, http.StatusInternalServerError, webhookError{Error: "Internal server error"})
		return
	}

	a.Logger.Info().
		Str("generation_id", g.ID).
		Str("status", string(g.Status)).
		Int("current_stage", g.CurrentStage).
		Int("progress", g.Progress).
		Msg("webhook applied")
	a.json(w, http.StatusOK, webhookAck{
		Success:      true,
		Message:      "Video status updated successfully",
		GenerationID: g.ID,
		Status:       g.Status,
		CurrentStage: g.CurrentStage,
	})
}
