package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cycleworks/internal/domain"
	"cycleworks/internal/payment"
	"cycleworks/internal/repository"
)

// PaymentService создаёт платёжные намерения и подтверждает оплату заказов
type PaymentService struct {
	gateway  payment.Gateway
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	// verify makes ConfirmOrder check the intent with the processor first.
	verify bool
	logger *slog.Logger
}

func NewPaymentService(
	gateway payment.Gateway,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	verify bool,
	logger *slog.Logger,
) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{gateway: gateway, orders: orders, payments: payments, verify: verify, logger: logger}
}

// CreateIntent opens a card intent for subTotal dollars and returns its client secret.
func (s *PaymentService) CreateIntent(ctx context.Context, subTotal float64) (string, error) {
	amount, err := payment.MinorUnits(subTotal)
	if err != nil {
		return "", ErrInvalidInput
	}
	intent, err := s.gateway.CreateIntent(ctx, amount, payment.Currency)
	if err != nil {
		return "", err
	}
	return intent.ClientSecret, nil
}

// ConfirmPayment данные клиента об успешной оплате
type ConfirmPayment struct {
	TransactionID string
	Email         string
	Amount        float64
}

// ConfirmOrder marks an unpaid order as paid and appends the payment record.
// A transaction id pays for at most one order. The returned result is the
// order update acknowledgement.
func (s *PaymentService) ConfirmOrder(ctx context.Context, orderID string, in ConfirmPayment) (domain.WriteResult, error) {
	oid, err := parseID(orderID)
	if err != nil {
		return domain.WriteResult{}, err
	}
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.TransactionID == "" || in.Amount < 0 {
		return domain.WriteResult{}, ErrInvalidInput
	}

	order, err := s.orders.GetByID(ctx, oid)
	if err != nil {
		return domain.WriteResult{}, err
	}
	if order.Paid {
		return domain.WriteResult{}, ErrAlreadyPaid
	}

	amount := in.Amount
	if s.verify {
		if amount, err = s.verifyCharge(ctx, in.TransactionID, order.SubTotal); err != nil {
			return domain.WriteResult{}, err
		}
	}

	email := in.Email
	if email == "" {
		email = order.Email
	}
	record := domain.Payment{OrderID: oid, TransactionID: in.TransactionID, Email: email, Amount: amount}
	if err := s.claimTransaction(ctx, record); err != nil {
		return domain.WriteResult{}, err
	}

	res, err := s.orders.MarkPaid(ctx, oid, in.TransactionID)
	if err != nil {
		return domain.WriteResult{}, err
	}
	// a concurrent confirmation with another transaction got there first
	if res.MatchedCount != nil && *res.MatchedCount == 0 {
		s.logger.Warn("Payment recorded for an order that is already paid",
			"order_id", orderID, "transaction_id", in.TransactionID)
		return domain.WriteResult{}, ErrAlreadyPaid
	}

	s.logger.Info("Order paid", "order_id", orderID, "transaction_id", in.TransactionID)
	return res, nil
}

// verifyCharge checks the intent with the processor and returns the charged
// amount in dollars. The intent must have succeeded for exactly the order total.
func (s *PaymentService) verifyCharge(ctx context.Context, transactionID string, subTotal float64) (float64, error) {
	intent, err := s.gateway.GetIntent(ctx, transactionID)
	if errors.Is(err, payment.ErrIntentNotFound) {
		return 0, ErrPaymentNotVerified
	}
	if err != nil {
		return 0, err
	}
	if intent.Status != payment.StatusSucceeded || !strings.EqualFold(intent.Currency, payment.Currency) {
		return 0, ErrPaymentNotVerified
	}
	want, err := payment.MinorUnits(subTotal)
	if err != nil || intent.Amount != want {
		s.logger.Warn("Charged amount does not match order total",
			"transaction_id", transactionID, "charged", intent.Amount, "expected", want)
		return 0, ErrPaymentNotVerified
	}
	return float64(intent.Amount) / 100, nil
}

// claimTransaction stores the payment record. A record left for the same
// order by an earlier attempt is reused.
func (s *PaymentService) claimTransaction(ctx context.Context, record domain.Payment) error {
	_, err := s.payments.Create(ctx, &record)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	existing, err := s.payments.FindByTransaction(ctx, record.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to look up payment: %w", err)
	}
	if existing.OrderID != record.OrderID {
		return ErrTransactionUsed
	}
	return nil
}
