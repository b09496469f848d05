package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// ReviewService owns reviews and the rating aggregates derived from them.
// The repository recomputes the affected average inside the review's own
// transaction, so a committed review is never observable with a stale
// aggregate.
type ReviewService struct {
	reviews port.ReviewRepository
}

func NewReviewService(reviews port.ReviewRepository) *ReviewService {
	return &ReviewService{reviews: reviews}
}

func (s *ReviewService) AddProductReview(ctx context.Context, userID, productID string, rating int, comment string) (*domain.Review, error) {
	return s.add(ctx, userID, &productID, nil, rating, comment)
}

func (s *ReviewService) AddStoreReview(ctx context.Context, userID, storeID string, rating int, comment string) (*domain.Review, error) {
	return s.add(ctx, userID, nil, &storeID, rating, comment)
}

func (s *ReviewService) add(ctx context.Context, userID string, productID, storeID *string, rating int, comment string) (*domain.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", domain.ErrValidation)
	}

	r := &domain.Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		StoreID:   storeID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.reviews.AddReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReviewService) Delete(ctx context.Context, userID, reviewID string) error {
	return s.reviews.DeleteReview(ctx, userID, reviewID)
}

func (s *ReviewService) ListProductReviews(ctx context.Context, productID string, page, limit int) ([]domain.Review, domain.Pagination, error) {
	page, limit = normalizePage(page, limit, 10)
	reviews, total, err := s.reviews.ListProductReviews(ctx, productID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return reviews, domain.NewPagination(total, page, limit), nil
}

func (s *ReviewService) ListStoreReviews(ctx context.Context, storeID string, page, limit int) ([]domain.Review, domain.Pagination, error) {
	page, limit = normalizePage(page, limit, 10)
	reviews, total, err := s.reviews.ListStoreReviews(ctx, storeID, page, limit)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return reviews, domain.NewPagination(total, page, limit), nil
}
