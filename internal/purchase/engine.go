package purchase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/policy"
)

// Quote is the outcome of a successful price-and-reserve pass: stock is held,
// final per-item prices are computed and the payable total is fixed.
type Quote struct {
	Reservation inventory.Reservation
	FinalPrices map[int64]float64
	Total       int64
}

// PriceAndReserve executes one purchase transaction against a shop's ledger:
// reserve every line atomically, price the reserved basket through the
// discount rules, and fix the payable total. When pricing fails the
// reservation is rolled back before the error surfaces, so the ledger is
// always left in its pre-call state on failure.
func PriceAndReserve(ctx context.Context, led inventory.Ledger, discounts []discount.Discount, categories map[int64]policy.Category, basket map[int64]int64) (Quote, error) {
	for _, qty := range basket {
		if qty < 0 {
			return Quote{}, fmt.Errorf("basket: %w", inventory.ErrInvalidQuantity)
		}
	}
	res, err := led.ReserveAll(ctx, basket)
	if err != nil {
		return Quote{}, err
	}
	final, err := discount.ApplyAll(discounts, res.Items, res.UnitPrices, categories)
	if err != nil {
		if rbErr := led.Rollback(ctx, res.Items); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback after pricing failure: %w", rbErr))
		}
		return Quote{}, err
	}
	var total float64
	for id, qty := range res.Items {
		total += float64(qty) * final[id]
	}
	return Quote{
		Reservation: res,
		FinalPrices: final,
		Total:       int64(math.Round(total)),
	}, nil
}
