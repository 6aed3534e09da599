package service

import (
	"context"
	"strings"

	"cycleworks/internal/domain"
	"cycleworks/internal/repository"
)

// OrderService реализует логику заказов: создание и выборки
type OrderService struct {
	orders repository.OrderRepository
}

func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

// CreateOrder сохраняет новый неоплаченный заказ
func (s *OrderService) CreateOrder(ctx context.Context, o domain.Order) (domain.WriteResult, error) {
	o.Email = strings.TrimSpace(o.Email)
	if o.Email == "" || o.Quantity <= 0 || o.SubTotal < 0 {
		return domain.WriteResult{}, ErrInvalidInput
	}
	// paid can only be set by payment confirmation
	o.Paid = false
	o.TransactionID = ""
	return s.orders.Create(ctx, &o)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, oid)
}

// OrdersOf returns the orders placed by email. The requester may only read
// their own orders.
func (s *OrderService) OrdersOf(ctx context.Context, requester, email string) ([]domain.Order, error) {
	if requester == "" || requester != email {
		return nil, ErrForbidden
	}
	return s.orders.ListByEmail(ctx, email)
}
