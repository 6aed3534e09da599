package service

import (
	"context"

	"cycleworks/internal/domain"
	"cycleworks/internal/repository"
)

type ReviewService struct {
	repo repository.ReviewRepository
}

func NewReviewService(repo repository.ReviewRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

func (s *ReviewService) Create(ctx context.Context, r domain.Review) (domain.WriteResult, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return domain.WriteResult{}, ErrInvalidInput
	}
	return s.repo.Create(ctx, &r)
}

func (s *ReviewService) List(ctx context.Context) ([]domain.Review, error) {
	return s.repo.List(ctx)
}
