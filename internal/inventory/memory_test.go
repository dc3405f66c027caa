package inventory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lapak-labs/backend-lapak/internal/inventory"
)

func seedMemory(t *testing.T, items map[int64][2]int64) *inventory.Memory {
	t.Helper()
	led := inventory.NewMemory()
	ctx := context.Background()
	for id, qp := range items {
		require.NoError(t, led.Restock(ctx, id, qp[0]))
		require.NoError(t, led.SetPrice(ctx, id, qp[1]))
	}
	return led
}

func TestReserveAllDecrementsAndSnapshotsPrices(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {10, 100}, 2: {5, 250}})
	ctx := context.Background()

	res, err := led.ReserveAll(ctx, map[int64]int64{1: 3, 2: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3*100+2*250), res.Total)
	require.Equal(t, int64(100), res.UnitPrices[1])

	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), qty)
	qty, err = led.Quantity(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), qty)
}

func TestReserveAllIsAllOrNothing(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {10, 100}, 2: {1, 250}})
	ctx := context.Background()

	_, err := led.ReserveAll(ctx, map[int64]int64{1: 3, 2: 2})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// The satisfiable line was not decremented.
	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)
}

func TestReserveAllRejectsNegativeQuantity(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {10, 100}})
	_, err := led.ReserveAll(context.Background(), map[int64]int64{1: -1})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestRollbackRestoresPreReservationState(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {10, 100}, 2: {5, 250}})
	ctx := context.Background()

	basket := map[int64]int64{1: 4, 2: 5}
	_, err := led.ReserveAll(ctx, basket)
	require.NoError(t, err)
	require.NoError(t, led.Rollback(ctx, basket))

	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)
	qty, err = led.Quantity(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), qty)
}

func TestRollbackIgnoresConcurrentOperationsOnOtherItems(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {10, 100}, 2: {20, 50}})
	ctx := context.Background()

	basket := map[int64]int64{1: 10}
	_, err := led.ReserveAll(ctx, basket)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = led.Restock(ctx, 2, 5)
	}()
	go func() {
		defer wg.Done()
		_ = led.Rollback(ctx, basket)
	}()
	wg.Wait()

	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)
	qty, err = led.Quantity(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(25), qty)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	// Quantity 5, ten workers each asking for 10: every attempt fails and
	// the quantity is untouched.
	led := seedMemory(t, map[int64][2]int64{1: {5, 5}})
	ctx := context.Background()

	var failures int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := led.ReserveAll(ctx, map[int64]int64{1: 10})
			if err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), failures)
	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), qty)
}

func TestConcurrentReservationsDrainExactly(t *testing.T) {
	// Quantity 100 at price 5, ten workers each taking 10: all succeed,
	// revenue totals 500 and the shelf ends empty.
	led := seedMemory(t, map[int64][2]int64{1: {100, 5}})
	ctx := context.Background()

	var revenue int64
	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := led.ReserveAll(ctx, map[int64]int64{1: 10})
			if err == nil {
				atomic.AddInt64(&successes, 1)
				atomic.AddInt64(&revenue, res.Total)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), successes)
	require.Equal(t, int64(500), revenue)
	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), qty)
}

func TestConcurrentUniformDemandGrantsFloor(t *testing.T) {
	// floor(17/5) = 3 of the workers succeed; 17 mod 5 = 2 units remain.
	led := seedMemory(t, map[int64][2]int64{1: {17, 1}})
	ctx := context.Background()

	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := led.ReserveAll(ctx, map[int64]int64{1: 5}); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(3), successes)
	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), qty)
}

func TestRemoveQuantityBounds(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {5, 10}})
	ctx := context.Background()

	require.ErrorIs(t, led.RemoveQuantity(ctx, 1, 6), inventory.ErrInsufficientStock)
	require.NoError(t, led.RemoveQuantity(ctx, 1, 5))
	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), qty)

	require.ErrorIs(t, led.RemoveQuantity(ctx, 99, 1), inventory.ErrUnknownItem)
}

func TestRemoveItemClearsQuantityAndPrice(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {5, 10}})
	ctx := context.Background()

	require.NoError(t, led.RemoveItem(ctx, 1))
	_, err := led.Quantity(ctx, 1)
	require.ErrorIs(t, err, inventory.ErrUnknownItem)
	prices, err := led.Prices(ctx)
	require.NoError(t, err)
	require.NotContains(t, prices, int64(1))

	require.ErrorIs(t, led.RemoveItem(ctx, 1), inventory.ErrUnknownItem)
}

func TestAvailableDoesNotMutate(t *testing.T) {
	led := seedMemory(t, map[int64][2]int64{1: {5, 10}})
	ctx := context.Background()

	ok, err := led.Available(ctx, map[int64]int64{1: 5})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = led.Available(ctx, map[int64]int64{1: 6})
	require.NoError(t, err)
	require.False(t, ok)

	qty, err := led.Quantity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), qty)
}
