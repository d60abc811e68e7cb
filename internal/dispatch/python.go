package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("dispatch: pipeline api key is required")

// PythonOptions configures the pipeline backend client.
type PythonOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// PythonClient dispatches jobs to the generation pipeline backend. The
// backend either answers with the finished artifacts or acknowledges and
// reports later through the status webhook.
type PythonClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type pipelineRequest struct {
	GenerationID      string               `json:"generation_id"`
	UserID            string               `json:"user_id"`
	Stage1Mode        string               `json:"stage1_mode,omitempty"`
	PersonFields      *domain.PersonFields `json:"person_fields,omitempty"`
	PersonPrompt      string               `json:"person_prompt,omitempty"`
	PersonImageURL    string               `json:"person_image_url,omitempty"`
	ProductImageURL   string               `json:"product_image_url,omitempty"`
	CompositePrompt   string               `json:"composite_prompt,omitempty"`
	CompositeImageURL string               `json:"composite_image_url,omitempty"`
	VideoPrompt       string               `json:"video_prompt,omitempty"`
	Veo3Mode          string               `json:"veo3_mode,omitempty"`
	Duration          int                  `json:"duration,omitempty"`
	AspectRatio       string               `json:"aspect_ratio,omitempty"`
	WebhookURL        string               `json:"webhook_url,omitempty"`
}

type pipelineResponse struct {
	Success           bool   `json:"success"`
	PersonURL         string `json:"person_url"`
	PersonS3Key       string `json:"person_s3_key"`
	CompositeURL      string `json:"composite_url"`
	CompositeS3Key    string `json:"composite_s3_key"`
	VideoURL          string `json:"video_url"`
	VideoS3Key        string `json:"video_s3_key"`
	ThumbnailURL      string `json:"thumbnail_url"`
	ProviderUsed      string `json:"provider_used"`
	FallbackTriggered bool   `json:"fallback_triggered"`
	ExecutionID       string `json:"execution_id"`
	Error             string `json:"error"`
	ErrorType         string `json:"error_type"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// NewPythonClient constructs a client with sane defaults and injected dependencies.
func NewPythonClient(opts PythonOptions) (*PythonClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	return &PythonClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *PythonClient) HasCredentials() bool {
	return c.apiKey != ""
}

// Dispatch posts the job to the asset type's route and interprets the
// immediate response.
func (c *PythonClient) Dispatch(ctx context.Context, req Request) (*Result, error) {
	if !c.HasCredentials() {
		return nil, &Error{Type: domain.ErrorTypeSystem, Message: domain.ErrorTypeSystem.DefaultMessage(), Err: ErrMissingAPIKey}
	}
	variant, ok := domain.Variant(req.AssetType)
	if !ok {
		return nil, &Error{Type: domain.ErrorTypeValidation, Message: domain.ErrorTypeValidation.DefaultMessage(), Err: fmt.Errorf("unknown asset type %q", req.AssetType)}
	}

	p := req.Params
	payload := pipelineRequest{
		GenerationID:      req.GenerationID,
		UserID:            req.UserID,
		Stage1Mode:        string(p.Mode),
		PersonFields:      p.PersonFields,
		PersonPrompt:      p.PersonPrompt,
		PersonImageURL:    p.PersonImageURL,
		ProductImageURL:   p.ProductImageURL,
		CompositePrompt:   p.CompositePrompt,
		CompositeImageURL: p.CompositeImageURL,
		VideoPrompt:       p.VideoPrompt,
		Veo3Mode:          string(p.VideoQuality),
		Duration:          p.Duration,
		AspectRatio:       p.AspectRatio,
		WebhookURL:        req.WebhookURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode request: %w", err)
	}
	endpoint := c.baseURL + variant.Route
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, serviceError(0, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serviceError(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, errorDetail(raw))
	}

	// An empty 2xx body is a bare acknowledgement.
	decoded := pipelineResponse{Success: true}
	if len(bytes.TrimSpace(raw)) > 0 {
		decoded.Success = false
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, serviceError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	if !decoded.Success {
		return nil, reportedFailure(decoded)
	}

	out := domain.StageOutput{
		PersonURL:    decoded.PersonURL,
		PersonKey:    decoded.PersonS3Key,
		CompositeURL: decoded.CompositeURL,
		CompositeKey: decoded.CompositeS3Key,
		VideoURL:     decoded.VideoURL,
		VideoKey:     decoded.VideoS3Key,
		ThumbnailURL: decoded.ThumbnailURL,
		Provider:     decoded.ProviderUsed,
		FallbackUsed: decoded.FallbackTriggered,
	}
	result := &Result{Output: out, ExecutionID: decoded.ExecutionID}
	var done domain.Generation
	done.Complete(out)
	if url, _ := variant.Output(&done); url != "" {
		result.Completed = true
	}
	c.logger.Debug().
		Str("generation_id", req.GenerationID).
		Str("route", variant.Route).
		Int("status", resp.StatusCode).
		Bool("completed", result.Completed).
		Msg("dispatch: pipeline responded")
	return result, nil
}

// reportedFailure handles a 2xx body that reports failure. A recognized
// error_type from the backend is kept; anything else is a service failure.
func reportedFailure(resp pipelineResponse) *Error {
	t := domain.ErrorType(resp.ErrorType)
	if !t.Valid() {
		t = domain.ErrorTypeService
	}
	msg := t.DefaultMessage()
	if !t.Refundable() && resp.Error != "" {
		msg = resp.Error
	}
	cause := resp.Error
	if cause == "" {
		cause = "pipeline reported failure"
	}
	return &Error{Type: t, StatusCode: http.StatusOK, Message: msg, Err: errors.New(cause)}
}

// errorDetail extracts a readable message from FastAPI style error bodies.
func errorDetail(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		var text string
		if len(detail.Detail) > 0 && json.Unmarshal(detail.Detail, &text) == nil && text != "" {
			return text
		}
		if detail.Message != "" {
			return detail.Message
		}
		if detail.Error != "" {
			return detail.Error
		}
		if len(detail.Detail) > 0 {
			return string(detail.Detail)
		}
	}
	return strings.TrimSpace(string(raw))
}
