package service

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cycleworks/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrTransactionUsed    = errors.New("transaction already used for another order")
	ErrPaymentNotVerified = errors.New("payment not verified")
)

// parseID принимает только 24-символьный hex id документа
func parseID(s string) (primitive.ObjectID, error) {
	if !repository.IsObjectID(s) {
		return primitive.NilObjectID, ErrInvalidInput
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidInput
	}
	return id, nil
}
