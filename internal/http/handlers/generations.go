package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/generation"
	"ugcvideo/internal/i18n"
	"ugcvideo/internal/validation"
)

const maxRequestBody = 1 << 20

type generationResponse struct {
	ID           string                  `json:"id"`
	AssetType    domain.AssetType        `json:"asset_type"`
	Status       domain.GenerationStatus `json:"status"`
	Params       domain.GenerationParams `json:"params"`
	CurrentStage int                     `json:"current_stage"`
	Progress     int                     `json:"progress"`

	GeneratedPersonURL string `json:"generated_person_url,omitempty"`
	CompositeImageURL  string `json:"composite_image_url,omitempty"`
	FinalVideoURL      string `json:"final_video_url,omitempty"`
	VideoThumbnailURL  string `json:"video_thumbnail_url,omitempty"`
	VideoProvider      string `json:"video_provider,omitempty"`
	FallbackUsed       bool   `json:"fallback_used"`

	Stage1Error string `json:"stage1_error,omitempty"`
	Stage2Error string `json:"stage2_error,omitempty"`
	Stage3Error string `json:"stage3_error,omitempty"`

	ErrorType       domain.ErrorType `json:"error_type,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	IsRefundable    bool             `json:"is_refundable"`
	CanRetry        bool             `json:"can_retry"`
	CreditsRefunded bool             `json:"credits_refunded"`
	Attempt         int              `json:"attempt"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(g *domain.Generation, locale string) *generationResponse {
	if g == nil {
		return nil
	}
	return &generationResponse{
		ID:                 g.ID,
		AssetType:          g.AssetType,
		Status:             g.Status,
		Params:             g.Params,
		CurrentStage:       g.CurrentStage,
		Progress:           g.Progress,
		GeneratedPersonURL: g.GeneratedPersonURL,
		CompositeImageURL:  g.CompositeImageURL,
		FinalVideoURL:      g.FinalVideoURL,
		VideoThumbnailURL:  g.VideoThumbnailURL,
		VideoProvider:      g.VideoProvider,
		FallbackUsed:       g.FallbackUsed,
		Stage1Error:        g.Stage1Error,
		Stage2Error:        g.Stage2Error,
		Stage3Error:        g.Stage3Error,
		ErrorType:          g.ErrorType,
		ErrorMessage:       i18n.ErrorMessage(locale, g.ErrorType, g.ErrorMessage),
		IsRefundable:       g.IsRefundable,
		CanRetry:           g.CanRetry,
		CreditsRefunded:    g.CreditsRefunded,
		Attempt:            g.Attempt,
		CreatedAt:          g.CreatedAt,
		UpdatedAt:          g.UpdatedAt,
	}
}

func toResponses(items []domain.Generation, locale string) []*generationResponse {
	out := make([]*generationResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i], locale))
	}
	return out
}

// decodeInput reads a JSON request body into T. Decode errors surface as
// validation errors naming the offending field where possible.
func decodeInput[T any](r *http.Request) (T, error) {
	var in T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&in); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return in, validation.Fail("body", "required", "request body is empty")
		case errors.As(err, &typeErr):
			return in, validation.Fail(typeErr.Field, "type", "must be a "+typeErr.Type.String())
		default:
			return in, validation.Fail("body", "json", "request body is not valid JSON")
		}
	}
	return in, nil
}

func createHandler[T generation.Input](a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := a.requireUser(w, r)
		if !ok {
			return
		}
		in, err := decodeInput[T](r)
		if err != nil {
			a.fail(w, r, err, i18n.MsgInternal)
			return
		}
		g, err := a.Generations.Create(r.Context(), userID, in)
		if err != nil {
			a.fail(w, r, err, i18n.MsgInternal)
			return
		}
		a.json(w, http.StatusCreated, toResponse(g, a.locale(r)))
	}
}

func (a *App) CreatePerson(w http.ResponseWriter, r *http.Request) {
	createHandler[generation.PersonInput](a)(w, r)
}

func (a *App) CreateComposite(w http.ResponseWriter, r *http.Request) {
	createHandler[generation.CompositeInput](a)(w, r)
}

func (a *App) CreateVideo(w http.ResponseWriter, r *http.Request) {
	createHandler[generation.VideoInput](a)(w, r)
}

func (a *App) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	createHandler[generation.PipelineInput](a)(w, r)
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.generationID(w, r)
	if !ok {
		return
	}
	g, err := a.Generations.Get(r.Context(), userID, id)
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, toResponse(g, a.locale(r)))
}

type listResponse struct {
	Items      []*generationResponse `json:"items"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	HasMore    bool                  `json:"has_more"`
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	assetType, err := parseAssetType(q.Get("asset_type"), false)
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	page, err := a.Generations.List(r.Context(), userID, domain.ListFilter{
		AssetType: assetType,
		Page:      queryInt(q.Get("page")),
		PageSize:  queryInt(q.Get("page_size")),
	})
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, listResponse{
		Items:      toResponses(page.Items, a.locale(r)),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		HasMore:    page.HasMore,
	})
}

// MostRecentPending answers with JSON null when nothing is in flight.
func (a *App) MostRecentPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	assetType, err := parseAssetType(r.URL.Query().Get("asset_type"), true)
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	g, err := a.Generations.MostRecentPending(r.Context(), userID, assetType)
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, toResponse(g, a.locale(r)))
}

func (a *App) CompletedVideos(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	items, err := a.Generations.CompletedVideos(r.Context(), userID, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toResponses(items, a.locale(r))})
}

type refundResponse struct {
	Success         bool   `json:"success"`
	CreditsRefunded int    `json:"credits_refunded"`
	Message         string `json:"message"`
}

func (a *App) RequestRefund(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.generationID(w, r)
	if !ok {
		return
	}
	loc := a.locale(r)
	res, err := a.Generations.RequestRefund(r.Context(), userID, id)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			msg = i18n.MsgRefundOnlyFailed
		case errors.Is(err, domain.ErrNotRefundable):
			msg = i18n.MsgRefundNotEligible
		case errors.Is(err, domain.ErrAlreadyRefunded):
			msg = i18n.MsgRefundAlreadyDone
		default:
			a.fail(w, r, err, i18n.MsgRefundFailed)
			return
		}
		a.json(w, http.StatusConflict, refundResponse{Message: i18n.T(loc, msg)})
		return
	}
	a.json(w, http.StatusOK, refundResponse{
		Success:         true,
		CreditsRefunded: res.CreditsRefunded,
		Message:         i18n.T(loc, i18n.MsgRefundSucceeded, res.CreditsRefunded),
	})
}

func (a *App) Retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.generationID(w, r)
	if !ok {
		return
	}
	loc := a.locale(r)
	g, err := a.Generations.Retry(r.Context(), userID, id)
	var insufficient *generation.InsufficientCreditsError
	switch {
	case err == nil:
		a.json(w, http.StatusOK, toResponse(g, loc))
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "invalid_state", i18n.T(loc, i18n.MsgRetryOnlyFailed))
	case errors.Is(err, domain.ErrNotRetryable):
		a.error(w, http.StatusConflict, "not_retryable", i18n.T(loc, i18n.MsgRetryNotAllowed))
	case errors.As(err, &insufficient):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", i18n.T(loc, i18n.MsgRetryNoCredits, insufficient.Required))
	default:
		a.fail(w, r, err, i18n.MsgInternal)
	}
}

func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]int{"video_credits": 0})
			return
		}
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"video_credits": balance})
}

type transactionResponse struct {
	ID           string              `json:"id"`
	Type         domain.CreditTxType `json:"type"`
	Amount       int                 `json:"amount"`
	BalanceAfter int                 `json:"balance_after"`
	GenerationID string              `json:"generation_id,omitempty"`
	Description  string              `json:"description,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (a *App) CreditHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	limit := queryInt(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txs, err := a.Ledger.History(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err, i18n.MsgInternal)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionResponse{
			ID:           tx.ID,
			Type:         tx.Type,
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			GenerationID: tx.GenerationID,
			Description:  tx.Description,
			CreatedAt:    tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// generationID reads the id path parameter. Malformed ids cannot exist, so
// they get the same 404 as someone else's job.
func (a *App) generationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", i18n.T(a.locale(r), i18n.MsgGenerationNotFound))
		return "", false
	}
	return id, true
}

func parseAssetType(raw string, required bool) (domain.AssetType, error) {
	if raw == "" {
		if required {
			return "", validation.Fail("asset_type", "required", "is required")
		}
		return "", nil
	}
	t := domain.AssetType(raw)
	if !t.Valid() {
		return "", validation.Fail("asset_type", "oneof", "must be one of PERSON COMPOSITE VIDEO FULL_PIPELINE")
	}
	return t, nil
}

// queryInt returns 0 for missing or malformed values so callers apply defaults.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
