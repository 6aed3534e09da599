// Package payment talks to the hosted card processor.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrIntentNotFound is returned when the processor has no intent with the given id.
var ErrIntentNotFound = errors.New("payment intent not found")

// Currency used for every charge.
const Currency = "usd"

// Status values of a payment intent we care about.
const (
	StatusSucceeded = "succeeded"
)

// Intent is the processor's view of a single charge attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Gateway is the subset of the processor API the shop uses.
type Gateway interface {
	// CreateIntent opens a card-only intent for amount minor units.
	CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// MinorUnits converts a dollar amount to whole cents, rounding half away from zero.
func MinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("invalid amount %v", amount)
	}
	cents := math.Round(amount * 100)
	if cents < 1 || cents > math.MaxInt64/2 {
		return 0, fmt.Errorf("amount %v out of range", amount)
	}
	return int64(cents), nil
}
