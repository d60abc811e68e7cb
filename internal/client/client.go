// Package client tracks generations from the consumer side: it polls a job
// until it reaches a terminal state and resumes tracking after a restart.
// Its timeout is cosmetic; the server keeps working on the job and the
// sweeper remains the authority on timeouts.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ugcvideo/internal/domain"
)

// ErrClientTimeout is returned by Watch when the policy timeout elapses
// before the job finishes.
var ErrClientTimeout = errors.New("client: gave up waiting for generation")

// Policy sets how often and how long a job is polled.
type Policy struct {
	Interval time.Duration
	Timeout  time.Duration
}

var (
	ImagePolicy = Policy{Interval: 2 * time.Second, Timeout: 120 * time.Second}
	VideoPolicy = Policy{Interval: 3 * time.Second, Timeout: 300 * time.Second}
)

// PolicyFor picks the polling policy for an asset type.
func PolicyFor(t domain.AssetType) Policy {
	switch t {
	case domain.AssetVideo, domain.AssetFullPipeline:
		return VideoPolicy
	}
	return ImagePolicy
}

// Generation is the client view of a job.
type Generation struct {
	ID                 string                  `json:"id"`
	AssetType          domain.AssetType        `json:"asset_type"`
	Status             domain.GenerationStatus `json:"status"`
	CurrentStage       int                     `json:"current_stage"`
	Progress           int                     `json:"progress"`
	GeneratedPersonURL string                  `json:"generated_person_url"`
	CompositeImageURL  string                  `json:"composite_image_url"`
	FinalVideoURL      string                  `json:"final_video_url"`
	VideoThumbnailURL  string                  `json:"video_thumbnail_url"`
	ErrorType          domain.ErrorType        `json:"error_type"`
	ErrorMessage       string                  `json:"error_message"`
	IsRefundable       bool                    `json:"is_refundable"`
	CanRetry           bool                    `json:"can_retry"`
	CreditsRefunded    bool                    `json:"credits_refunded"`
	Attempt            int                     `json:"attempt"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the generation API on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for baseURL authenticating with a bearer token.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// Get fetches one generation.
func (c *Client) Get(ctx context.Context, id string) (*Generation, error) {
	var g *Generation
	if err := c.get(ctx, "/v1/generations/"+url.PathEscape(id), &g); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("client: empty response for %s", id)
	}
	return g, nil
}

// MostRecentPending returns the newest in-flight job of the type, or nil.
func (c *Client) MostRecentPending(ctx context.Context, t domain.AssetType) (*Generation, error) {
	var g *Generation
	if err := c.get(ctx, "/v1/generations/pending?asset_type="+url.QueryEscape(string(t)), &g); err != nil {
		return nil, err
	}
	return g, nil
}

// Watch polls id until it completes or fails. onUpdate, when set, sees every
// poll result. Transient request errors are retried until the timeout.
func (c *Client) Watch(ctx context.Context, id string, p Policy, onUpdate func(*Generation)) (*Generation, error) {
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var lastErr error
	for {
		g, err := c.Get(ctx, id)
		switch {
		case err == nil:
			lastErr = nil
			if onUpdate != nil {
				onUpdate(g)
			}
			if g.Status.Terminal() {
				return g, nil
			}
		case isPermanent(err):
			return nil, err
		default:
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrClientTimeout, lastErr)
			}
			return nil, ErrClientTimeout
		case <-ticker.C:
		}
	}
}

// Resume finds the newest pending job of the type and watches it. It
// returns nil, nil when nothing is in flight.
func (c *Client) Resume(ctx context.Context, t domain.AssetType, onUpdate func(*Generation)) (*Generation, error) {
	pending, err := c.MostRecentPending(ctx, t)
	if err != nil || pending == nil {
		return nil, err
	}
	return c.Watch(ctx, pending.ID, PolicyFor(t), onUpdate)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	return json.Unmarshal(body, out)
}

// isPermanent reports errors that polling again cannot fix.
func isPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
