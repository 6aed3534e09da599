package service

import (
	"context"
	"strings"

	"cycleworks/internal/domain"
	"cycleworks/internal/repository"
)

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (domain.WriteResult, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Price < 0 || p.MinimumQuantity < 0 || p.AvailableQuantity < 0 {
		return domain.WriteResult{}, ErrInvalidInput
	}
	cp := p
	return s.repo.Create(ctx, &cp)
}

// Delete removes a product. An unknown id yields deletedCount 0, not an error.
func (s *ProductService) Delete(ctx context.Context, id string) (domain.WriteResult, error) {
	oid, err := parseID(id)
	if err != nil {
		return domain.WriteResult{}, err
	}
	return s.repo.Delete(ctx, oid)
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}
