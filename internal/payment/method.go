package payment

import (
	"context"

	"github.com/google/uuid"
)

// Charge captures the information required to collect payment for a
// completed purchase.
type Charge struct {
	PurchaseID uuid.UUID
	UserID     uuid.UUID
	Amount     int64
	Currency   string
}

// Result is the minimal confirmation returned by a payment provider.
type Result struct {
	Reference string
	Captured  bool
}

// Method abstracts the payment capability consumed by the surrounding service
// layer. It is invoked only after the core has committed a price, never from
// the pricing or inventory paths.
type Method interface {
	ProcessPayment(ctx context.Context, charge Charge) (Result, error)
	RefundPayment(ctx context.Context, reference string, amount int64) error
}
