package shipping

import (
	"context"

	"github.com/google/uuid"
)

// Shipment describes one outbound delivery for a completed purchase.
type Shipment struct {
	PurchaseID uuid.UUID
	Address    string
	Items      map[int64]int64
}

// Method abstracts the shipping capability consumed by the surrounding
// service layer after a purchase completes. The returned reference identifies
// the shipment at the carrier.
type Method interface {
	ProcessShipment(ctx context.Context, shipment Shipment) (string, error)
}
