package discount_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lapak-labs/backend-lapak/internal/discount"
	"github.com/lapak-labs/backend-lapak/internal/policy"
)

func TestConstructionValidatesPercentage(t *testing.T) {
	_, err := discount.NewGlobal(-1, discount.CombineBestOf, nil)
	require.ErrorIs(t, err, discount.ErrPercentOutOfRange)

	_, err = discount.NewItem(1, 101, discount.CombineCompound, nil)
	require.ErrorIs(t, err, discount.ErrPercentOutOfRange)

	_, err = discount.NewGlobal(0, discount.CombineBestOf, nil)
	require.NoError(t, err)
	_, err = discount.NewGlobal(100, discount.CombineBestOf, nil)
	require.NoError(t, err)
}

func TestConstructionRequiresCombineMode(t *testing.T) {
	_, err := discount.NewGlobal(10, 0, nil)
	require.ErrorIs(t, err, discount.ErrUnknownCombine)
}

func TestBundleRequiresItems(t *testing.T) {
	_, err := discount.NewBundle(nil, 10, discount.CombineBestOf, nil)
	require.ErrorIs(t, err, discount.ErrEmptyBundle)
}

func TestBestOfDiscountsCompete(t *testing.T) {
	ten, err := discount.NewItem(1, 10, discount.CombineBestOf, nil)
	require.NoError(t, err)
	thirty, err := discount.NewItem(1, 30, discount.CombineBestOf, nil)
	require.NoError(t, err)
	twenty, err := discount.NewGlobal(20, discount.CombineBestOf, nil)
	require.NoError(t, err)

	basket := map[int64]int64{1: 2}
	prices := map[int64]int64{1: 1000}

	final, err := discount.ApplyAll([]discount.Discount{ten, thirty, twenty}, basket, prices, nil)
	require.NoError(t, err)
	// The customer receives the single best discount, never the sum.
	require.InDelta(t, 700.0, final[1], 1e-9)
}

func TestCompoundDiscountsStackInAnyOrder(t *testing.T) {
	a, err := discount.NewItem(1, 10, discount.CombineCompound, nil)
	require.NoError(t, err)
	b, err := discount.NewItem(1, 25, discount.CombineCompound, nil)
	require.NoError(t, err)

	basket := map[int64]int64{1: 1}
	prices := map[int64]int64{1: 1000}

	forward, err := discount.ApplyAll([]discount.Discount{a, b}, basket, prices, nil)
	require.NoError(t, err)
	reverse, err := discount.ApplyAll([]discount.Discount{b, a}, basket, prices, nil)
	require.NoError(t, err)

	require.InDelta(t, 1000*0.9*0.75, forward[1], 1e-9)
	require.InDelta(t, forward[1], reverse[1], 1e-9)
}

func TestCompoundStacksOnBestOf(t *testing.T) {
	best, err := discount.NewItem(1, 20, discount.CombineBestOf, nil)
	require.NoError(t, err)
	comp, err := discount.NewItem(1, 10, discount.CombineCompound, nil)
	require.NoError(t, err)

	final, err := discount.ApplyAll([]discount.Discount{best, comp}, map[int64]int64{1: 1}, map[int64]int64{1: 1000}, nil)
	require.NoError(t, err)
	require.InDelta(t, 1000*0.8*0.9, final[1], 1e-9)
}

func TestCategoryDiscountSkipsOtherCategories(t *testing.T) {
	d, err := discount.NewCategory("dairy", 50, discount.CombineBestOf, nil)
	require.NoError(t, err)

	basket := map[int64]int64{1: 1, 2: 1}
	prices := map[int64]int64{1: 100, 2: 200}
	categories := map[int64]policy.Category{1: "dairy", 2: "bakery"}

	final, err := discount.ApplyAll([]discount.Discount{d}, basket, prices, categories)
	require.NoError(t, err)
	require.InDelta(t, 50.0, final[1], 1e-9)
	require.InDelta(t, 200.0, final[2], 1e-9)
}

func TestItemDiscountSkipsAbsentItem(t *testing.T) {
	d, err := discount.NewItem(42, 50, discount.CombineBestOf, nil)
	require.NoError(t, err)

	final, err := discount.ApplyAll([]discount.Discount{d}, map[int64]int64{1: 1}, map[int64]int64{1: 100}, nil)
	require.NoError(t, err)
	require.InDelta(t, 100.0, final[1], 1e-9)
}

func TestBundleRequiresEveryMemberQuantity(t *testing.T) {
	bundle, err := discount.NewBundle(map[int64]int64{1: 2, 2: 1}, 10, discount.CombineBestOf, nil)
	require.NoError(t, err)

	prices := map[int64]int64{1: 100, 2: 200, 3: 50}

	// One member short: no effect.
	final, err := discount.ApplyAll([]discount.Discount{bundle}, map[int64]int64{1: 1, 2: 1}, prices, nil)
	require.NoError(t, err)
	require.InDelta(t, 100.0, final[1], 1e-9)
	require.InDelta(t, 200.0, final[2], 1e-9)

	// Full match: the bundle subtotal is discounted, members outside the
	// bundle are untouched.
	final, err = discount.ApplyAll([]discount.Discount{bundle}, map[int64]int64{1: 2, 2: 1, 3: 1}, prices, nil)
	require.NoError(t, err)
	require.InDelta(t, 90.0, final[1], 1e-9)
	require.InDelta(t, 180.0, final[2], 1e-9)
	require.InDelta(t, 50.0, final[3], 1e-9)
}

func TestGuardedDiscountSkipsWhenPolicyFalse(t *testing.T) {
	minSpend := 1000.0
	guard := policy.NewLeaf(policy.Leaf{BasketValue: &minSpend})
	d, err := discount.NewGlobal(10, discount.CombineBestOf, guard)
	require.NoError(t, err)

	basket := map[int64]int64{1: 1}
	prices := map[int64]int64{1: 500}

	final, err := discount.ApplyAll([]discount.Discount{d}, basket, prices, nil)
	require.NoError(t, err)
	require.InDelta(t, 500.0, final[1], 1e-9)

	basket[1] = 2
	final, err = discount.ApplyAll([]discount.Discount{d}, basket, prices, nil)
	require.NoError(t, err)
	require.InDelta(t, 450.0, final[1], 1e-9)
}

func TestFaultyGuardAbortsWholePass(t *testing.T) {
	// A zero-value policy node has no operator and must fail fast.
	var broken policy.Policy
	d, err := discount.NewGlobal(10, discount.CombineBestOf, &broken)
	require.NoError(t, err)

	_, err = discount.ApplyAll([]discount.Discount{d}, map[int64]int64{1: 1}, map[int64]int64{1: 100}, nil)
	require.ErrorIs(t, err, discount.ErrEvaluation)
}
