package shop

import (
	"context"
	"errors"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lapak-labs/backend-lapak/internal/auction"
	"github.com/lapak-labs/backend-lapak/internal/common"
	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/events"
	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/obs"
	"github.com/lapak-labs/backend-lapak/internal/payment"
	"github.com/lapak-labs/backend-lapak/internal/policy"
	"github.com/lapak-labs/backend-lapak/internal/purchase"
	"github.com/lapak-labs/backend-lapak/internal/shipping"
)

// ErrPolicyRejected is returned when a basket does not satisfy the shop's
// purchase policies.
var ErrPolicyRejected = errors.New("basket rejected by shop policy")

// CheckoutInput is one purchase request against a shop.
type CheckoutInput struct {
	UserID  uuid.UUID       `validate:"required"`
	Basket  map[int64]int64 `validate:"required,min=1,dive,gte=0"`
	Address string          `validate:"required"`
}

// AuctionInput opens an auction on a basket of shop items.
type AuctionInput struct {
	SellerID     uuid.UUID       `validate:"required"`
	Items        map[int64]int64 `validate:"required,min=1,dive,gt=0"`
	Address      string          `validate:"required"`
	InitialPrice int64           `validate:"gte=0"`
	EndTime      time.Time       `validate:"required"`
}

// ReviewInput is one customer rating.
type ReviewInput struct {
	UserID  uuid.UUID `validate:"required"`
	Rating  int32     `validate:"gte=1,lte=5"`
	Comment string    `validate:"max=2000"`
}

// Service is the facade the surrounding repository talks to. Every operation
// resolves the shop through the injected store, translates core errors into
// the shared taxonomy and records metrics and structured logs.
type Service struct {
	Shops    *Store
	Bus      *events.Bus
	Validate *validator.Validate
	Logger   zerolog.Logger
	Now      func() time.Time

	// Payments is optional; when set, completing a purchase collects the
	// price and cancelling refunds it.
	Payments payment.Method
	// Currency labels charges handed to the payment method.
	Currency string
}

// NewService wires a service around a shop store.
func NewService(shops *Store, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		Shops:    shops,
		Bus:      bus,
		Validate: validator.New(),
		Logger:   logger,
		Now:      time.Now,
	}
}

// PriceAndReserve executes the checkout flow: reserve stock atomically, price
// the basket through the discount rules, and return a priced, not yet
// completed purchase. Any pricing failure rolls the reservation back before
// the error surfaces.
func (s *Service) PriceAndReserve(ctx context.Context, shopID uuid.UUID, in CheckoutInput) (*purchase.Purchase, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := s.checkPolicies(ctx, sh, in.Basket); err != nil {
		s.countCheckout("rejected")
		return nil, err
	}
	quote, err := purchase.PriceAndReserve(ctx, sh.Ledger, sh.Discounts(), sh.Categories(), in.Basket)
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrEvaluation):
			s.countCheckout("pricing_failed")
			if obs.ReservationRollbackTotal != nil {
				obs.ReservationRollbackTotal.Inc()
			}
		case errors.Is(err, inventory.ErrInsufficientStock):
			s.countCheckout("insufficient_stock")
		default:
			s.countCheckout("rejected")
		}
		s.Logger.Warn().Err(err).Str("shop_id", shopID.String()).Msg("checkout_failed")
		return nil, translate(err)
	}
	p := purchase.New(in.UserID, shopID, quote.Reservation.Items, in.Address, quote.Total)
	sh.trackPurchase(p)
	s.countCheckout("granted")
	if obs.ReservedUnitsTotal != nil {
		var units int64
		for _, qty := range quote.Reservation.Items {
			units += qty
		}
		obs.ReservedUnitsTotal.Add(float64(units))
	}
	if obs.CheckoutDuration != nil {
		obs.CheckoutDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
	s.emit(ctx, events.TopicPurchasePriced, p.ID, map[string]any{
		"shopId": shopID.String(),
		"userId": in.UserID.String(),
		"total":  quote.Total,
	})
	for itemID := range quote.Reservation.Items {
		if qty, qerr := sh.Ledger.Quantity(ctx, itemID); qerr == nil && qty == 0 {
			s.emit(ctx, events.TopicStockDepleted, shopID, map[string]any{"itemId": itemID})
		}
	}
	s.Logger.Info().
		Str("shop_id", shopID.String()).
		Str("purchase_id", p.ID.String()).
		Int64("total", quote.Total).
		Msg("checkout_priced")
	return p, nil
}

// Rollback re-adds previously reserved quantities after the surrounding
// transaction failed downstream of the core.
func (s *Service) Rollback(ctx context.Context, shopID uuid.UUID, basket map[int64]int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	if err := sh.Ledger.Rollback(ctx, basket); err != nil {
		return translate(err)
	}
	if obs.ReservationRollbackTotal != nil {
		obs.ReservationRollbackTotal.Inc()
	}
	return nil
}

// CompletePurchase finalizes a priced purchase.
func (s *Service) CompletePurchase(ctx context.Context, shopID, purchaseID uuid.UUID) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	p, err := sh.Purchase(purchaseID)
	if err != nil {
		return translate(err)
	}
	at, err := p.Complete()
	if err != nil {
		return common.Validation("purchase already completed", err)
	}
	if s.Payments != nil {
		res, payErr := s.Payments.ProcessPayment(ctx, payment.Charge{
			PurchaseID: p.ID,
			UserID:     p.UserID,
			Amount:     p.Price(),
			Currency:   s.currency(),
		})
		if payErr != nil {
			p.Cancel()
			s.Logger.Warn().Err(payErr).Str("purchase_id", p.ID.String()).Msg("charge_failed")
			return common.Validation("payment was declined", payErr)
		}
		sh.setChargeRef(p.ID, res.Reference)
	}
	if sh.Shipping != nil {
		if _, shipErr := sh.Shipping.ProcessShipment(ctx, shipping.Shipment{
			PurchaseID: p.ID,
			Address:    p.Address,
			Items:      p.Items(),
		}); shipErr != nil {
			// The purchase stays completed; shipping is retried out of band.
			s.Logger.Warn().Err(shipErr).Str("purchase_id", p.ID.String()).Msg("shipment_failed")
		}
	}
	s.emit(ctx, events.TopicPurchaseCompleted, p.ID, map[string]any{
		"shopId":      shopID.String(),
		"userId":      p.UserID.String(),
		"total":       p.Price(),
		"completedAt": at,
	})
	return nil
}

// CancelPurchase reverses a completion. Inventory restoration remains the
// caller's explicit Rollback call.
func (s *Service) CancelPurchase(ctx context.Context, shopID, purchaseID uuid.UUID) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	p, err := sh.Purchase(purchaseID)
	if err != nil {
		return translate(err)
	}
	p.Cancel()
	if s.Payments != nil {
		if ref, ok := sh.takeChargeRef(p.ID); ok {
			if refundErr := s.Payments.RefundPayment(ctx, ref, p.Price()); refundErr != nil {
				s.Logger.Warn().Err(refundErr).Str("purchase_id", p.ID.String()).Msg("refund_failed")
			}
		}
	}
	s.emit(ctx, events.TopicPurchaseCanceled, p.ID, map[string]any{"shopId": shopID.String()})
	return nil
}

// AddDiscount attaches a discount rule to the shop.
func (s *Service) AddDiscount(_ context.Context, shopID uuid.UUID, d discount.Discount) (uuid.UUID, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return uuid.Nil, err
	}
	return sh.AddDiscount(d), nil
}

// RemoveDiscount detaches a discount rule.
func (s *Service) RemoveDiscount(_ context.Context, shopID, discountID uuid.UUID) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	return translate(sh.RemoveDiscount(discountID))
}

// Discounts lists the shop's discount collection.
func (s *Service) Discounts(shopID uuid.UUID) ([]discount.Discount, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return nil, err
	}
	return sh.Discounts(), nil
}

// SetPolicy attaches a purchase policy to the shop.
func (s *Service) SetPolicy(_ context.Context, shopID uuid.UUID, p *policy.Policy) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	sh.SetPolicy(p)
	return nil
}

// Policies lists the shop's purchase policies.
func (s *Service) Policies(shopID uuid.UUID) ([]*policy.Policy, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return nil, err
	}
	return sh.Policies(), nil
}

// OpenAuction opens a bid-accumulating auction on the shop.
func (s *Service) OpenAuction(_ context.Context, shopID uuid.UUID, in AuctionInput) (uuid.UUID, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.validate(in); err != nil {
		return uuid.Nil, err
	}
	b := auction.NewBid(in.SellerID, shopID, in.Items, in.Address, in.InitialPrice, in.EndTime)
	sh.trackAuction(b)
	return b.ID, nil
}

// PlaceBid records a user's bid on an open auction.
func (s *Service) PlaceBid(ctx context.Context, shopID, auctionID, userID uuid.UUID, amount int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	b, err := sh.Auction(auctionID)
	if err != nil {
		return translate(err)
	}
	if err := b.AddBidding(userID, amount); err != nil {
		if errors.Is(err, auction.ErrNegativeBid) {
			return common.Validation("bid amount must be non-negative", err)
		}
		return common.Validation("auction no longer accepts bids", err)
	}
	if obs.BidPlacedTotal != nil {
		obs.BidPlacedTotal.Inc()
	}
	s.emit(ctx, events.TopicBidPlaced, auctionID, map[string]any{
		"shopId": shopID.String(),
		"userId": userID.String(),
		"amount": amount,
	})
	return nil
}

// FinalizeAuction resolves the auction to its highest bidder and returns the
// winner's user id.
func (s *Service) FinalizeAuction(ctx context.Context, shopID, auctionID uuid.UUID) (uuid.UUID, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return uuid.Nil, err
	}
	b, err := sh.Auction(auctionID)
	if err != nil {
		return uuid.Nil, translate(err)
	}
	winner, err := b.CompleteAuction()
	if err != nil {
		if errors.Is(err, auction.ErrNoBids) {
			return uuid.Nil, common.Validation("auction has no bids", err)
		}
		return uuid.Nil, common.Validation("auction already completed", err)
	}
	if obs.AuctionFinalizedTotal != nil {
		obs.AuctionFinalizedTotal.Inc()
	}
	s.emit(ctx, events.TopicAuctionFinalized, auctionID, map[string]any{
		"shopId":   shopID.String(),
		"winnerId": winner.String(),
		"amount":   b.Price(),
	})
	s.Logger.Info().
		Str("shop_id", shopID.String()).
		Str("auction_id", auctionID.String()).
		Str("winner_id", winner.String()).
		Int64("amount", b.Price()).
		Msg("auction_finalized")
	return winner, nil
}

// AuctionReceipt projects the auction state for one bidder.
func (s *Service) AuctionReceipt(shopID, auctionID, bidderID uuid.UUID) (auction.Receipt, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return auction.Receipt{}, err
	}
	b, err := sh.Auction(auctionID)
	if err != nil {
		return auction.Receipt{}, translate(err)
	}
	return b.Receipt(bidderID), nil
}

// Restock adds stock for an item.
func (s *Service) Restock(ctx context.Context, shopID uuid.UUID, itemID, delta int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	return translate(sh.Ledger.Restock(ctx, itemID, delta))
}

// SetPrice sets an item's unit price.
func (s *Service) SetPrice(ctx context.Context, shopID uuid.UUID, itemID, price int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	return translate(sh.Ledger.SetPrice(ctx, itemID, price))
}

// SetItemCategory labels an item for category-scoped rules.
func (s *Service) SetItemCategory(_ context.Context, shopID uuid.UUID, itemID int64, category policy.Category) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	sh.SetCategory(itemID, category)
	return nil
}

// RemoveItem clears an item's stock and price.
func (s *Service) RemoveItem(ctx context.Context, shopID uuid.UUID, itemID int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	return translate(sh.Ledger.RemoveItem(ctx, itemID))
}

// RemoveQuantity decrements stock without a purchase.
func (s *Service) RemoveQuantity(ctx context.Context, shopID uuid.UUID, itemID, delta int64) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	return translate(sh.Ledger.RemoveQuantity(ctx, itemID, delta))
}

// Quantity reads an item's available quantity.
func (s *Service) Quantity(ctx context.Context, shopID uuid.UUID, itemID int64) (int64, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return 0, err
	}
	qty, err := sh.Ledger.Quantity(ctx, itemID)
	return qty, translate(err)
}

// CheckAvailability reports whether the basket could be reserved right now.
func (s *Service) CheckAvailability(ctx context.Context, shopID uuid.UUID, basket map[int64]int64) (bool, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return false, err
	}
	ok, err := sh.Ledger.Available(ctx, basket)
	return ok, translate(err)
}

// AddReview appends a customer review.
func (s *Service) AddReview(_ context.Context, shopID uuid.UUID, in ReviewInput) error {
	sh, err := s.shop(shopID)
	if err != nil {
		return err
	}
	if err := s.validate(in); err != nil {
		return err
	}
	sh.AddReview(Review{UserID: in.UserID, Rating: in.Rating, Comment: in.Comment, At: s.now()})
	return nil
}

// AverageRating returns the shop's mean rating at call time.
func (s *Service) AverageRating(shopID uuid.UUID) (float64, error) {
	sh, err := s.shop(shopID)
	if err != nil {
		return 0, err
	}
	return sh.AverageRating(), nil
}

// CloseShop closes the shop permanently.
func (s *Service) CloseShop(ctx context.Context, shopID uuid.UUID) error {
	_, err := s.Shops.Close(shopID)
	if err != nil {
		return translate(err)
	}
	s.emit(ctx, events.TopicShopClosed, shopID, nil)
	return nil
}

func (s *Service) shop(id uuid.UUID) (*Shop, error) {
	sh, err := s.Shops.Get(id)
	if err != nil {
		return nil, translate(err)
	}
	return sh, nil
}

// checkPolicies evaluates the shop's purchase policies against the basket at
// current ledger prices. All attached policies must hold.
func (s *Service) checkPolicies(ctx context.Context, sh *Shop, basket map[int64]int64) error {
	policies := sh.Policies()
	if len(policies) == 0 {
		return nil
	}
	priceMap, err := sh.Ledger.Prices(ctx)
	if err != nil {
		return translate(err)
	}
	prices := make(map[int64]float64, len(priceMap))
	for id, price := range priceMap {
		prices[id] = float64(price)
	}
	categories := sh.Categories()
	for _, p := range policies {
		ok, evalErr := p.Evaluate(basket, prices, categories)
		if evalErr != nil {
			return common.Configuration("purchase policy is misconfigured", evalErr)
		}
		if !ok {
			return common.Validation("basket rejected by shop policy", ErrPolicyRejected)
		}
	}
	return nil
}

func (s *Service) validate(in any) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(in); err != nil {
		return common.Validation("invalid request", err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event_emit_failed")
	}
}

func (s *Service) countCheckout(result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return "IDR"
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// translate maps core errors onto the shared taxonomy so callers can decide
// on retries by kind. Nil and already-translated errors pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if common.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return common.InsufficientStock("reservation cannot be satisfied", err)
	case errors.Is(err, inventory.ErrUnknownItem),
		errors.Is(err, ErrUnknownShop),
		errors.Is(err, ErrUnknownDiscount),
		errors.Is(err, ErrUnknownPurchase),
		errors.Is(err, ErrUnknownAuction):
		return common.NotFound("unknown reference", err)
	case errors.Is(err, ErrShopClosed):
		return common.NotFound("shop is closed", err)
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidPrice):
		return common.Validation("invalid quantity or price", err)
	case errors.Is(err, discount.ErrEvaluation):
		return common.DiscountEvaluation("discount rule failed during pricing", err)
	case errors.Is(err, policy.ErrUnknownOperator):
		return common.Configuration("policy operator is not set", err)
	default:
		return err
	}
}
