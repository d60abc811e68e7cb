package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ugcvideo/internal/infra"
	"ugcvideo/internal/sqlinline"
)

// Providers with stored tokens.
const (
	ProviderPythonBackend = "python_backend"
	ProviderN8N           = "n8n"
)

// Store reads and writes integration tokens kept in the database, so the
// pipeline key can be rotated without redeploying.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// PipelineAPIKey returns the stored pipeline backend key, or "" when unset.
func (s *Store) PipelineAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderPythonBackend)
}

// N8NSecret returns the stored workflow engine secret, or "" when unset.
func (s *Store) N8NSecret(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderN8N)
}

// Resolve prefers an explicitly configured value over the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	return s.Token(ctx, provider)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores token for provider, recording who rotated it.
func (s *Store) SetToken(ctx context.Context, provider, token, rotatedBy string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New(provider + " token is required")
	}
	switch provider {
	case ProviderPythonBackend, ProviderN8N:
	default:
		return errors.New("unknown provider " + provider)
	}
	var props map[string]any
	if rotatedBy != "" {
		props = map[string]any{"rotated_by": rotatedBy}
	}
	return s.upsert(ctx, provider, token, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
