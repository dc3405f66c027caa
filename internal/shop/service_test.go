package shop_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lapak-labs/backend-lapak/internal/common"
	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/events"
	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/payment"
	"github.com/lapak-labs/backend-lapak/internal/policy"
	"github.com/lapak-labs/backend-lapak/internal/shipping"
	"github.com/lapak-labs/backend-lapak/internal/shop"
)

type fixture struct {
	svc    *shop.Service
	store  *shop.Store
	log    *events.MemoryStore
	shopID uuid.UUID
	led    *inventory.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	led := inventory.NewMemory()
	require.NoError(t, led.Restock(ctx, 1, 10))
	require.NoError(t, led.SetPrice(ctx, 1, 1000))
	require.NoError(t, led.Restock(ctx, 2, 5))
	require.NoError(t, led.SetPrice(ctx, 2, 500))

	store := shop.NewStore()
	sh := store.Create("Lapak Sejahtera", led, shipping.NewRecorder())

	log := events.NewMemoryStore()
	svc := shop.NewService(store, &events.Bus{Store: log}, zerolog.Nop())
	return &fixture{svc: svc, store: store, log: log, shopID: sh.ID, led: led}
}

func TestCheckoutPricesAndReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := discount.NewItem(1, 10, discount.CombineBestOf, nil)
	require.NoError(t, err)
	_, err = f.svc.AddDiscount(ctx, f.shopID, d)
	require.NoError(t, err)

	p, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 2, 2: 1},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)
	// 2 x 900 after 10% off item 1, plus 1 x 500 at list price.
	require.Equal(t, int64(2300), p.Price())

	qty, err := f.svc.Quantity(ctx, f.shopID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(8), qty)

	require.Len(t, f.log.ByTopic(events.TopicPurchasePriced), 1)
}

func TestCheckoutEmitsStockDepleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{2: 5},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)

	depleted := f.log.ByTopic(events.TopicStockDepleted)
	require.Len(t, depleted, 1)
	require.Equal(t, f.shopID, depleted[0].AggregateID)
}

func TestCheckoutRejectsUnknownShop(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PriceAndReserve(context.Background(), uuid.New(), shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 1},
		Address: "Jl. Kenanga 7",
	})
	require.Equal(t, common.CodeNotFound, common.CodeOf(err))
}

func TestCheckoutValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PriceAndReserve(context.Background(), f.shopID, shop.CheckoutInput{
		UserID: uuid.New(),
	})
	require.Equal(t, common.CodeValidation, common.CodeOf(err))
}

func TestCheckoutEnforcesShopPolicies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	min := int64(3)
	require.NoError(t, f.svc.SetPolicy(ctx, f.shopID, policy.NewLeaf(policy.Leaf{
		ItemID:    &[]int64{1}[0],
		Threshold: &min,
	})))

	_, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 2},
		Address: "Jl. Kenanga 7",
	})
	require.Equal(t, common.CodeValidation, common.CodeOf(err))

	// Nothing was reserved on rejection.
	qty, err := f.svc.Quantity(ctx, f.shopID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)

	_, err = f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 3},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)
}

func TestCheckoutMisconfiguredPolicyIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var broken policy.Policy
	require.NoError(t, f.svc.SetPolicy(ctx, f.shopID, &broken))

	_, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 1},
		Address: "Jl. Kenanga 7",
	})
	require.Equal(t, common.CodeConfiguration, common.CodeOf(err))
}

func TestCheckoutPricingFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var broken policy.Policy
	d, err := discount.NewGlobal(10, discount.CombineBestOf, &broken)
	require.NoError(t, err)
	_, err = f.svc.AddDiscount(ctx, f.shopID, d)
	require.NoError(t, err)

	_, err = f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 4},
		Address: "Jl. Kenanga 7",
	})
	require.Equal(t, common.CodeDiscountEvaluation, common.CodeOf(err))

	qty, err := f.svc.Quantity(ctx, f.shopID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty, "reservation must be rolled back when pricing fails")
}

func TestCompleteAndCancelPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 1},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CompletePurchase(ctx, f.shopID, p.ID))
	require.True(t, p.Completed())
	require.Len(t, f.log.ByTopic(events.TopicPurchaseCompleted), 1)

	err = f.svc.CompletePurchase(ctx, f.shopID, p.ID)
	require.Equal(t, common.CodeValidation, common.CodeOf(err))

	require.NoError(t, f.svc.CancelPurchase(ctx, f.shopID, p.ID))
	require.False(t, p.Completed())
	require.Len(t, f.log.ByTopic(events.TopicPurchaseCanceled), 1)
}

func TestCompletePurchaseChargesAndShips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payments := payment.NewRecorder()
	f.svc.Payments = payments

	p, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 2},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CompletePurchase(ctx, f.shopID, p.ID))
	charges := payments.Charges()
	require.Len(t, charges, 1)
	require.Equal(t, p.ID, charges[0].PurchaseID)
	require.Equal(t, int64(2000), charges[0].Amount)

	sh, err := f.store.Get(f.shopID)
	require.NoError(t, err)
	rec := sh.Shipping.(*shipping.Recorder)
	require.Len(t, rec.Shipments(), 1)
	require.Equal(t, "Jl. Kenanga 7", rec.Shipments()[0].Address)

	require.NoError(t, f.svc.CancelPurchase(ctx, f.shopID, p.ID))
	require.Equal(t, int64(2000), payments.Refunded("pay-1"))
}

func TestCompletePurchaseDeclinedChargeStaysOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payments := payment.NewRecorder()
	payments.Fail = errors.New("card declined")
	f.svc.Payments = payments

	p, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 1},
		Address: "Jl. Kenanga 7",
	})
	require.NoError(t, err)

	err = f.svc.CompletePurchase(ctx, f.shopID, p.ID)
	require.Equal(t, common.CodeValidation, common.CodeOf(err))
	require.False(t, p.Completed(), "a declined charge must leave the purchase open")
	require.Empty(t, f.log.ByTopic(events.TopicPurchaseCompleted))
}

func TestRemoveDiscountUnknownID(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RemoveDiscount(context.Background(), f.shopID, uuid.New())
	require.Equal(t, common.CodeNotFound, common.CodeOf(err))
}

func TestAuctionFlowThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auctionID, err := f.svc.OpenAuction(ctx, f.shopID, shop.AuctionInput{
		SellerID:     uuid.New(),
		Items:        map[int64]int64{2: 1},
		Address:      "Jl. Kenanga 7",
		InitialPrice: 100,
		EndTime:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	alice, bob := uuid.New(), uuid.New()
	require.NoError(t, f.svc.PlaceBid(ctx, f.shopID, auctionID, alice, 150))
	require.NoError(t, f.svc.PlaceBid(ctx, f.shopID, auctionID, bob, 200))

	err = f.svc.PlaceBid(ctx, f.shopID, auctionID, alice, -5)
	require.Equal(t, common.CodeValidation, common.CodeOf(err))

	rc, err := f.svc.AuctionReceipt(f.shopID, auctionID, alice)
	require.NoError(t, err)
	require.Equal(t, int64(150), rc.BidderAmount)
	require.Equal(t, int64(200), rc.HighestBid)
	require.Equal(t, bob, rc.HighestBidder)

	winner, err := f.svc.FinalizeAuction(ctx, f.shopID, auctionID)
	require.NoError(t, err)
	require.Equal(t, bob, winner)
	require.Len(t, f.log.ByTopic(events.TopicBidPlaced), 2)
	require.Len(t, f.log.ByTopic(events.TopicAuctionFinalized), 1)

	_, err = f.svc.FinalizeAuction(ctx, f.shopID, auctionID)
	require.Equal(t, common.CodeValidation, common.CodeOf(err))
}

func TestConcurrentReviewsKeepConsistentAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(rating int32) {
			defer wg.Done()
			require.NoError(t, f.svc.AddReview(ctx, f.shopID, shop.ReviewInput{
				UserID: uuid.New(),
				Rating: rating,
			}))
		}(int32(i%5 + 1))
	}
	wg.Wait()

	avg, err := f.svc.AverageRating(f.shopID)
	require.NoError(t, err)
	// Six full cycles of ratings 1..5 average to exactly 3.
	require.InDelta(t, 3.0, avg, 1e-9)

	sh, err := f.store.Get(f.shopID)
	require.NoError(t, err)
	require.Len(t, sh.Reviews(), 30)
}

func TestCloseShopIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.CloseShop(ctx, f.shopID))
	require.Len(t, f.log.ByTopic(events.TopicShopClosed), 1)
	require.Zero(t, f.store.Open())

	_, err := f.svc.PriceAndReserve(ctx, f.shopID, shop.CheckoutInput{
		UserID:  uuid.New(),
		Basket:  map[int64]int64{1: 1},
		Address: "Jl. Kenanga 7",
	})
	require.Equal(t, common.CodeNotFound, common.CodeOf(err))

	err = f.svc.CloseShop(ctx, f.shopID)
	require.Equal(t, common.CodeNotFound, common.CodeOf(err))

	closed, err := f.store.Closed(f.shopID)
	require.NoError(t, err)
	require.Equal(t, "Lapak Sejahtera", closed.Name)
}

func TestInventoryAdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Restock(ctx, f.shopID, 3, 7))
	require.NoError(t, f.svc.SetPrice(ctx, f.shopID, 3, 250))
	require.NoError(t, f.svc.SetItemCategory(ctx, f.shopID, 3, "aksesoris"))

	ok, err := f.svc.CheckAvailability(ctx, f.shopID, map[int64]int64{3: 7})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.svc.RemoveQuantity(ctx, f.shopID, 3, 2))
	qty, err := f.svc.Quantity(ctx, f.shopID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(5), qty)

	err = f.svc.RemoveQuantity(ctx, f.shopID, 3, 50)
	require.Equal(t, common.CodeInsufficientStock, common.CodeOf(err))

	require.NoError(t, f.svc.RemoveItem(ctx, f.shopID, 3))
	err = f.svc.RemoveItem(ctx, f.shopID, 3)
	require.Equal(t, common.CodeNotFound, common.CodeOf(err))
}
