package generation

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"ugcvideo/internal/domain"
)

const signConcurrency = 8

// Page is one page of finished generations.
type Page struct {
	Items      []domain.Generation
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
	HasMore    bool
}

// Get returns the caller's generation. Jobs owned by someone else are
// reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Generation, error) {
	g, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.refreshURLs(ctx, g)
	return g, nil
}

// List returns finished generations newest first. Page numbers start at 1
// and the page size is capped.
func (s *Service) List(ctx context.Context, userID string, filter domain.ListFilter) (*Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if err := s.refreshAll(ctx, items); err != nil {
		return nil, err
	}
	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	return &Page{
		Items:      items,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
		HasMore:    filter.Page < totalPages,
	}, nil
}

// MostRecentPending lets a client resume watching after a reload. It returns
// nil when nothing is pending.
func (s *Service) MostRecentPending(ctx context.Context, userID string, assetType domain.AssetType) (*domain.Generation, error) {
	g, err := s.repo.MostRecentPending(ctx, userID, assetType)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CompletedVideos lists finished jobs that produced a video.
func (s *Service) CompletedVideos(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	if limit < 1 || limit > maxPageSize {
		limit = maxPageSize
	}
	items, err := s.repo.ListCompletedVideos(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.refreshAll(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) refreshAll(ctx context.Context, items []domain.Generation) error {
	if s.urls == nil || len(items) == 0 {
		return nil
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(signConcurrency)
	for i := range items {
		g := &items[i]
		group.Go(func() error {
			s.refreshURLs(gctx, g)
			return nil
		})
	}
	return group.Wait()
}

// refreshURLs swaps stored artifact URLs for freshly signed ones. A signing
// failure keeps the stored URL.
func (s *Service) refreshURLs(ctx context.Context, g *domain.Generation) {
	if s.urls == nil {
		return
	}
	targets := []struct {
		key string
		url *string
	}{
		{g.S3KeyPerson, &g.GeneratedPersonURL},
		{g.S3KeyComposite, &g.CompositeImageURL},
		{g.S3KeyVideo, &g.FinalVideoURL},
	}
	for _, t := range targets {
		if t.key == "" {
			continue
		}
		signed, err := s.urls.SignedURL(ctx, t.key)
		if err != nil {
			s.logger.Warn().Err(err).Str("generation_id", g.ID).Str("key", t.key).Msg("sign artifact url")
			continue
		}
		*t.url = signed
	}
}
