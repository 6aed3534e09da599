package repository

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cycleworks/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrDuplicate возвращается при нарушении уникального ключа
var ErrDuplicate = errors.New("duplicate key")

// UserRepository интерфейс репозитория пользователей с ключом по email
type UserRepository interface {
	// Upsert обновляет профиль или создаёт пользователя с ролью user.
	Upsert(ctx context.Context, email string, profile domain.UserProfile) (domain.WriteResult, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetRole(ctx context.Context, email string, role domain.Role) (domain.WriteResult, error)
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) (domain.WriteResult, error)
	List(ctx context.Context) ([]domain.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) (domain.WriteResult, error)
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) (domain.WriteResult, error)
	List(ctx context.Context) ([]domain.Order, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
	// MarkPaid sets paid=true and the transaction id on an unpaid order.
	// MatchedCount is zero when the order is missing or already paid.
	MarkPaid(ctx context.Context, id primitive.ObjectID, transactionID string) (domain.WriteResult, error)
}

// ReviewRepository интерфейс репозитория отзывов
type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) (domain.WriteResult, error)
	List(ctx context.Context) ([]domain.Review, error)
}

// PaymentRepository журнал подтверждённых оплат, только добавление.
// Одна транзакция процессора принадлежит одному заказу.
type PaymentRepository interface {
	// Create returns ErrDuplicate when the transaction id is already recorded.
	Create(ctx context.Context, p *domain.Payment) (domain.WriteResult, error)
	FindByTransaction(ctx context.Context, transactionID string) (*domain.Payment, error)
}

// Store набор репозиториев одного хранилища
type Store struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Reviews  ReviewRepository
	Payments PaymentRepository
}

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsObjectID reports whether s has the shape of a document id (24 hex chars).
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}
