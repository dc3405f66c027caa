package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapak-labs/backend-lapak/internal/common"
	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/events"
	"github.com/lapak-labs/backend-lapak/internal/inventory"
	"github.com/lapak-labs/backend-lapak/internal/lock"
	"github.com/lapak-labs/backend-lapak/internal/obs"
	"github.com/lapak-labs/backend-lapak/internal/shipping"
	"github.com/lapak-labs/backend-lapak/internal/shop"
)

// loadsim hammers one shop with concurrent checkouts and verifies stock
// conservation afterwards: every unit is either still on the shelf or inside
// a granted reservation, never both, never neither.
func main() {
	_ = godotenv.Load()

	workers := flag.Int("workers", common.AtoiDefault(os.Getenv("SIM_WORKERS"), 16), "concurrent buyers")
	rounds := flag.Int("rounds", common.AtoiDefault(os.Getenv("SIM_ROUNDS"), 50), "checkout attempts per buyer")
	stock := flag.Int("stock", common.AtoiDefault(os.Getenv("SIM_STOCK"), 500), "seeded stock per item")
	items := flag.Int("items", common.AtoiDefault(os.Getenv("SIM_ITEMS"), 5), "distinct items in the shop")
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "optional redis url; empty runs the in-memory ledger")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("tool", "loadsim").Logger()
	ctx := context.Background()

	var led inventory.Ledger
	var locker *lock.Locker
	if *redisURL != "" {
		opts, err := redis.ParseURL(*redisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		led = &inventory.Redis{R: client, Prefix: "loadsim"}
		locker = &lock.Locker{R: client, Prefix: "loadsim:", RetryBackoff: 25 * time.Millisecond}
	} else {
		led = inventory.NewMemory()
	}

	seed := func(context.Context) error {
		for i := 1; i <= *items; i++ {
			id := int64(i)
			if err := led.Restock(ctx, id, int64(*stock)); err != nil {
				return err
			}
			if err := led.SetPrice(ctx, id, int64(1000*i)); err != nil {
				return err
			}
		}
		return nil
	}
	if locker != nil {
		// Several simulator instances may share one Redis; only one seeds.
		if err := locker.WithLock(ctx, "seed", 30*time.Second, seed); err != nil {
			logger.Fatal().Err(err).Msg("seed inventory")
		}
	} else if err := seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("seed inventory")
	}

	store := shop.NewStore()
	sh := store.Create("loadsim", led, shipping.NewRecorder())
	svc := shop.NewService(store, &events.Bus{Store: events.NewMemoryStore()}, logger)

	if d, err := discount.NewGlobal(5, discount.CombineBestOf, nil); err == nil {
		_, _ = svc.AddDiscount(ctx, sh.ID, d)
	}

	var granted, denied, reservedUnits atomic.Int64
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for r := 0; r < *rounds; r++ {
				basket := map[int64]int64{
					int64(rng.Intn(*items) + 1): int64(rng.Intn(3) + 1),
				}
				p, err := svc.PriceAndReserve(ctx, sh.ID, shop.CheckoutInput{
					UserID:  uuid.New(),
					Basket:  basket,
					Address: "Jl. Simulasi 1",
				})
				if err != nil {
					denied.Add(1)
					continue
				}
				granted.Add(1)
				for _, qty := range p.Items() {
					reservedUnits.Add(qty)
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var remaining int64
	for i := 1; i <= *items; i++ {
		qty, err := led.Quantity(ctx, int64(i))
		if err != nil {
			logger.Fatal().Err(err).Int("item", i).Msg("read remaining quantity")
		}
		remaining += qty
	}

	seeded := int64(*stock) * int64(*items)
	logger.Info().
		Int64("granted", granted.Load()).
		Int64("denied", denied.Load()).
		Int64("reserved_units", reservedUnits.Load()).
		Int64("remaining_units", remaining).
		Dur("elapsed", elapsed).
		Msg("simulation finished")

	if reservedUnits.Load()+remaining != seeded {
		logger.Fatal().
			Int64("seeded", seeded).
			Int64("accounted", reservedUnits.Load()+remaining).
			Msg("stock conservation violated")
	}
	logger.Info().Msg("stock conserved: every unit is on the shelf or in a reservation")

	runAuctionRound(ctx, svc, sh.ID, *workers, logger)
}

// runAuctionRound opens one auction, fires concurrent bids and checks that
// completion resolves to the highest amount placed.
func runAuctionRound(ctx context.Context, svc *shop.Service, shopID uuid.UUID, bidders int, logger zerolog.Logger) {
	auctionID, err := svc.OpenAuction(ctx, shopID, shop.AuctionInput{
		SellerID:     uuid.New(),
		Items:        map[int64]int64{1: 1},
		Address:      "Jl. Simulasi 1",
		InitialPrice: 1000,
		EndTime:      time.Now().Add(time.Hour),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open auction")
	}

	var wg sync.WaitGroup
	var highest atomic.Int64
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			if err := svc.PlaceBid(ctx, shopID, auctionID, uuid.New(), amount); err == nil {
				for {
					cur := highest.Load()
					if amount <= cur || highest.CompareAndSwap(cur, amount) {
						break
					}
				}
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	winner, err := svc.FinalizeAuction(ctx, shopID, auctionID)
	if err != nil {
		logger.Fatal().Err(err).Msg("finalize auction")
	}
	rc, err := svc.AuctionReceipt(shopID, auctionID, winner)
	if err != nil {
		logger.Fatal().Err(err).Msg("auction receipt")
	}
	if rc.Price != highest.Load() {
		logger.Fatal().
			Int64("expected", highest.Load()).
			Int64("got", rc.Price).
			Msg("auction did not settle on the highest bid")
	}
	logger.Info().
		Str("winner", winner.String()).
		Int64("amount", rc.Price).
		Msg("auction round settled on the highest bid")
}
