package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
)

// N8NOptions configures the workflow webhook dispatcher.
type N8NOptions struct {
	WebhookURL string
	Secret     string
	// CallbackSecret is forwarded so the workflow can authenticate its
	// status updates.
	CallbackSecret string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// N8NClient triggers a workflow and returns as soon as it is accepted. All
// progress arrives through the status webhook.
type N8NClient struct {
	webhookURL     string
	secret         string
	callbackSecret string
	httpClient     *http.Client
	logger         *infra.Logger
	now            func() time.Time
}

type n8nPayload struct {
	UserID            string                  `json:"userId"`
	VideoGenerationID string                  `json:"videoGenerationId"`
	AssetType         domain.AssetType        `json:"assetType"`
	Params            domain.GenerationParams `json:"params"`
	WebhookSecret     string                  `json:"webhookSecret,omitempty"`
	CallbackURL       string                  `json:"callbackUrl,omitempty"`
	Timestamp         string                  `json:"timestamp"`
}

type n8nAck struct {
	ExecutionID string `json:"executionId"`
}

// NewN8NClient validates options and builds the client.
func NewN8NClient(opts N8NOptions) (*N8NClient, error) {
	webhookURL := strings.TrimSpace(opts.WebhookURL)
	if webhookURL == "" {
		return nil, fmt.Errorf("dispatch: n8n webhook url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &N8NClient{
		webhookURL:     webhookURL,
		secret:         strings.TrimSpace(opts.Secret),
		callbackSecret: strings.TrimSpace(opts.CallbackSecret),
		httpClient:     httpClient,
		logger:         logger,
		now:            now,
	}, nil
}

// Dispatch triggers the workflow. The result is never Completed.
func (c *N8NClient) Dispatch(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(n8nPayload{
		UserID:            req.UserID,
		VideoGenerationID: req.GenerationID,
		AssetType:         req.AssetType,
		Params:            req.Params,
		WebhookSecret:     c.callbackSecret,
		CallbackURL:       req.WebhookURL,
		Timestamp:         c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode workflow payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build workflow request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, serviceError(0, fmt.Errorf("workflow request: %w", err))
	}
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, errorDetail(raw))
	}

	// The workflow has accepted the job; an unreadable acknowledgement only
	// costs the execution id.
	var ack n8nAck
	switch {
	case readErr != nil:
		c.logger.Debug().
			Err(readErr).
			Str("generation_id", req.GenerationID).
			Msg("dispatch: read workflow acknowledgement")
	case len(bytes.TrimSpace(raw)) > 0:
		if err := json.Unmarshal(raw, &ack); err != nil {
			c.logger.Debug().
				Err(err).
				Str("generation_id", req.GenerationID).
				Msg("dispatch: decode workflow acknowledgement")
		}
	}
	c.logger.Debug().
		Str("generation_id", req.GenerationID).
		Str("execution_id", ack.ExecutionID).
		Msg("dispatch: workflow accepted")
	return &Result{ExecutionID: ack.ExecutionID}, nil
}
