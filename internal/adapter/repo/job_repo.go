package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/sqlinline"
)

const creditsConstraint = "users_video_credits_nonnegative"

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// CreateWithDebit debits the owner and inserts the job in one statement.
func (r *GenerationRepositoryPG) CreateWithDebit(ctx context.Context, g *domain.Generation, cost int) error {
	params, err := json.Marshal(g.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	var balance int
	row := r.sql.QueryRow(ctx, sqlinline.QCreateGenerationWithDebit, g.ID, g.UserID, cost, string(g.AssetType), params)
	if err := row.Scan(&g.CreatedAt, &g.UpdatedAt, &balance); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInsufficientCredits
		}
		return err
	}
	g.Status = domain.StatusPending
	return nil
}

// Get fetches a job by id regardless of owner.
func (r *GenerationRepositoryPG) Get(ctx context.Context, id string) (*domain.Generation, error) {
	return scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
}

// GetForUser fetches a job only when it belongs to userID.
func (r *GenerationRepositoryPG) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	return scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationForUser, id, userID))
}

// List returns one page of finished jobs, newest first, with the total count.
func (r *GenerationRepositoryPG) List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Generation, int, error) {
	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountGenerations, userID, string(filter.AssetType)).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	offset := (filter.Page - 1) * filter.PageSize
	items, err := r.query(ctx, sqlinline.QListGenerations, userID, string(filter.AssetType), filter.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MostRecentPending returns the newest PENDING job of the given type.
func (r *GenerationRepositoryPG) MostRecentPending(ctx context.Context, userID string, assetType domain.AssetType) (*domain.Generation, error) {
	return scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectMostRecentPending, userID, string(assetType)))
}

// ListCompletedVideos returns finished jobs that carry a final video.
func (r *GenerationRepositoryPG) ListCompletedVideos(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	return r.query(ctx, sqlinline.QListCompletedVideos, userID, limit)
}

// Save writes every mutable field guarded by the previously read updated_at.
func (r *GenerationRepositoryPG) Save(ctx context.Context, g *domain.Generation, expectedUpdatedAt time.Time) error {
	row := r.sql.QueryRow(ctx, sqlinline.QSaveGeneration,
		g.ID,
		expectedUpdatedAt,
		string(g.Status),
		g.GeneratedPersonURL,
		g.S3KeyPerson,
		g.Stage1Error,
		g.CompositeImageURL,
		g.S3KeyComposite,
		g.Stage2Error,
		g.FinalVideoURL,
		g.VideoThumbnailURL,
		g.S3KeyVideo,
		g.VideoProvider,
		g.FallbackUsed,
		g.Stage3Error,
		string(g.ErrorType),
		g.ErrorMessage,
		g.IsRefundable,
		g.CanRetry,
		g.CurrentStage,
		g.Progress,
		g.ExternalExecutionID,
	)
	if err := row.Scan(&g.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// Complete stores synchronous results on a non-terminal job.
func (r *GenerationRepositoryPG) Complete(ctx context.Context, id string, out domain.StageOutput) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteGeneration,
		id,
		out.PersonURL,
		out.PersonKey,
		out.CompositeURL,
		out.CompositeKey,
		out.VideoURL,
		out.VideoKey,
		out.ThumbnailURL,
		out.Provider,
		out.FallbackUsed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records the failure when the job is in one of the from states.
func (r *GenerationRepositoryPG) MarkFailed(ctx context.Context, id string, f domain.Failure, from ...domain.GenerationStatus) (bool, error) {
	if len(from) == 0 {
		from = []domain.GenerationStatus{domain.StatusPending, domain.StatusProcessing}
	}
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationFailed, id, string(f.Type), f.Message, f.Type.Refundable(), f.Stage, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Refund credits the owner and flags the job in one statement.
func (r *GenerationRepositoryPG) Refund(ctx context.Context, id string, amount int) (bool, error) {
	var refunded int
	if err := r.sql.QueryRow(ctx, sqlinline.QRefundGeneration, id, amount).Scan(&refunded); err != nil {
		return false, err
	}
	return refunded == 1, nil
}

// RetryWithDebit resets a failed job and debits the owner in one statement,
// returning refund first when the failed attempt still owes it.
func (r *GenerationRepositoryPG) RetryWithDebit(ctx context.Context, id, userID string, cost, refund int) (*domain.Generation, error) {
	g, err := scanOne(r.sql.QueryRow(ctx, sqlinline.QRetryGeneration, id, userID, cost, refund))
	if err != nil {
		if infra.IsCheckViolation(err, creditsConstraint) {
			return nil, domain.ErrInsufficientCredits
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotRetryable
		}
		return nil, err
	}
	return g, nil
}

// ListStalePending returns PENDING jobs untouched since olderThan.
func (r *GenerationRepositoryPG) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Generation, error) {
	return r.query(ctx, sqlinline.QListStalePending, olderThan, limit)
}

// ListRefundable returns failed, refundable jobs that were not refunded yet.
func (r *GenerationRepositoryPG) ListRefundable(ctx context.Context, limit int) ([]domain.Generation, error) {
	return r.query(ctx, sqlinline.QListRefundable, limit)
}

func (r *GenerationRepositoryPG) query(ctx context.Context, query string, args ...any) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

func scanOne(row pgx.Row) (*domain.Generation, error) {
	g, err := scanGeneration(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var (
		g         domain.Generation
		assetType string
		status    string
		errorType string
		params    []byte
	)
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&assetType,
		&status,
		&params,
		&g.GeneratedPersonURL,
		&g.S3KeyPerson,
		&g.Stage1Error,
		&g.CompositeImageURL,
		&g.S3KeyComposite,
		&g.Stage2Error,
		&g.FinalVideoURL,
		&g.VideoThumbnailURL,
		&g.S3KeyVideo,
		&g.VideoProvider,
		&g.FallbackUsed,
		&g.Stage3Error,
		&errorType,
		&g.ErrorMessage,
		&g.IsRefundable,
		&g.CanRetry,
		&g.CreditsRefunded,
		&g.Attempt,
		&g.RefundedAttempt,
		&g.CurrentStage,
		&g.Progress,
		&g.ExternalExecutionID,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.AssetType = domain.AssetType(assetType)
	g.Status = domain.GenerationStatus(status)
	g.ErrorType = domain.ErrorType(errorType)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &g.Params); err != nil {
			return nil, fmt.Errorf("decode params for %s: %w", g.ID, err)
		}
	}
	return &g, nil
}
