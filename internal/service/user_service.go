package service

import (
	"context"
	"errors"
	"strings"

	"cycleworks/internal/domain"
	"cycleworks/internal/repository"
)

// TokenIssuer выдаёт подписанный токен для email
type TokenIssuer interface {
	Issue(email string) (string, error)
}

// UserService регистрация пользователей, выдача токенов и роли
type UserService struct {
	users  repository.UserRepository
	tokens TokenIssuer
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Login upserts the user keyed by email and issues a token for that email.
// Identity is trusted from the upstream provider; there is no password check.
func (s *UserService) Login(ctx context.Context, email string, profile domain.UserProfile) (domain.WriteResult, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.WriteResult{}, "", ErrInvalidInput
	}
	res, err := s.users.Upsert(ctx, email, profile)
	if err != nil {
		return domain.WriteResult{}, "", err
	}
	token, err := s.tokens.Issue(email)
	if err != nil {
		return domain.WriteResult{}, "", err
	}
	return res, token, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// IsAdmin looks up the stored role. An unknown email is not an admin.
func (s *UserService) IsAdmin(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// Promote grants the admin role. The caller must already be an admin;
// the route guard checks that before calling.
func (s *UserService) Promote(ctx context.Context, email string) (domain.WriteResult, error) {
	if strings.TrimSpace(email) == "" {
		return domain.WriteResult{}, ErrInvalidInput
	}
	return s.users.SetRole(ctx, email, domain.RoleAdmin)
}
