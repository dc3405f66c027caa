package discount

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lapak-labs/backend-lapak/internal/policy"
)

var (
	// ErrPercentOutOfRange rejects discount percentages outside [0,100].
	ErrPercentOutOfRange = errors.New("discount percentage must be between 0 and 100")
	// ErrEmptyBundle rejects a bundle discount without items.
	ErrEmptyBundle = errors.New("bundle discount requires at least one item")
	// ErrUnknownCombine rejects a discount built without a combine mode.
	ErrUnknownCombine = errors.New("discount combine mode is not set")
	// ErrEvaluation wraps failures raised while applying a discount rule.
	// Callers must treat it as a transaction failure and roll back reserved stock.
	ErrEvaluation = errors.New("discount evaluation failed")
)

// Combine selects how a discount interacts with other rules on the same item.
type Combine uint8

const (
	// CombineBestOf competes with other discounts; the customer receives the
	// single lowest candidate price computed from the original price.
	CombineBestOf Combine = iota + 1
	// CombineCompound stacks multiplicatively on the running price
	// established by prior rules.
	CombineCompound
)

// String returns the combine mode name for logging.
func (c Combine) String() string {
	switch c {
	case CombineBestOf:
		return "best_of"
	case CombineCompound:
		return "compound"
	default:
		return "unknown"
	}
}

// Scope identifies which basket lines a discount targets.
type Scope uint8

const (
	ScopeGlobal Scope = iota + 1
	ScopeCategory
	ScopeItem
	ScopeBundle
)

// String returns the scope name for logging.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeCategory:
		return "category"
	case ScopeItem:
		return "item"
	case ScopeBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// Discount is a pricing rule owned by a shop. Discounts are immutable value
// objects; the collection is unordered and the combining rules keep the final
// prices independent of application order.
type Discount struct {
	id      uuid.UUID
	scope   Scope
	percent float64
	combine Combine
	guard   *policy.Policy

	category policy.Category
	itemID   int64
	bundle   map[int64]int64
}

// ID returns the discount identifier used for removal.
func (d Discount) ID() uuid.UUID { return d.id }

// Scope returns the discount target scope.
func (d Discount) Scope() Scope { return d.scope }

// Percent returns the discount percentage in [0,100].
func (d Discount) Percent() float64 { return d.percent }

// Combine returns the combine mode.
func (d Discount) Combine() Combine { return d.combine }

// Guard returns the optional eligibility policy.
func (d Discount) Guard() *policy.Policy { return d.guard }

func newDiscount(scope Scope, percent float64, combine Combine, guard *policy.Policy) (Discount, error) {
	if percent < 0 || percent > 100 {
		return Discount{}, fmt.Errorf("%w: got %v", ErrPercentOutOfRange, percent)
	}
	if combine != CombineBestOf && combine != CombineCompound {
		return Discount{}, ErrUnknownCombine
	}
	return Discount{id: uuid.New(), scope: scope, percent: percent, combine: combine, guard: guard}, nil
}

// NewGlobal builds a discount applying to every item in the basket.
func NewGlobal(percent float64, combine Combine, guard *policy.Policy) (Discount, error) {
	return newDiscount(ScopeGlobal, percent, combine, guard)
}

// NewCategory builds a discount applying to every basket item of the category.
func NewCategory(category policy.Category, percent float64, combine Combine, guard *policy.Policy) (Discount, error) {
	d, err := newDiscount(ScopeCategory, percent, combine, guard)
	if err != nil {
		return Discount{}, err
	}
	d.category = category
	return d, nil
}

// NewItem builds a discount applying to a single item.
func NewItem(itemID int64, percent float64, combine Combine, guard *policy.Policy) (Discount, error) {
	d, err := newDiscount(ScopeItem, percent, combine, guard)
	if err != nil {
		return Discount{}, err
	}
	d.itemID = itemID
	return d, nil
}

// NewBundle builds a discount applying to a set of items bought together.
// Each entry maps an item to the minimum quantity the basket must hold for the
// bundle to match. The guard, when present, gates the bundle as a whole.
func NewBundle(items map[int64]int64, percent float64, combine Combine, guard *policy.Policy) (Discount, error) {
	if len(items) == 0 {
		return Discount{}, ErrEmptyBundle
	}
	d, err := newDiscount(ScopeBundle, percent, combine, guard)
	if err != nil {
		return Discount{}, err
	}
	bundle := make(map[int64]int64, len(items))
	for id, qty := range items {
		if qty < 1 {
			qty = 1
		}
		bundle[id] = qty
	}
	d.bundle = bundle
	return d, nil
}

// ApplyAll prices the basket by running every discount over the running
// discounted map, initialised to the original prices. The returned map holds
// the final per-item prices. An error from any rule aborts the whole pass; the
// caller must roll back any inventory it reserved for this attempt.
func ApplyAll(discounts []Discount, basket map[int64]int64, originalPrices map[int64]int64, categories map[int64]policy.Category) (map[int64]float64, error) {
	running := make(map[int64]float64, len(basket))
	for id := range basket {
		running[id] = float64(originalPrices[id])
	}
	for _, d := range discounts {
		if err := d.apply(basket, originalPrices, categories, running); err != nil {
			return nil, err
		}
	}
	return running, nil
}

func (d Discount) apply(basket map[int64]int64, originalPrices map[int64]int64, categories map[int64]policy.Category, running map[int64]float64) error {
	targets := d.targets(basket, categories)
	if len(targets) == 0 {
		return nil
	}
	if d.guard != nil {
		ok, err := d.guard.Evaluate(basket, running, categories)
		if err != nil {
			return fmt.Errorf("%w: %s discount %s: %v", ErrEvaluation, d.scope, d.id, err)
		}
		if !ok {
			return nil
		}
	}
	factor := 1 - d.percent/100
	for _, id := range targets {
		switch d.combine {
		case CombineCompound:
			running[id] *= factor
		case CombineBestOf:
			candidate := float64(originalPrices[id]) * factor
			if candidate < running[id] {
				running[id] = candidate
			}
		default:
			return fmt.Errorf("%w: discount %s", ErrUnknownCombine, d.id)
		}
	}
	return nil
}

// targets resolves the basket items the discount affects. A bundle matches
// only when every member is present with at least its required quantity; its
// percentage then lands on every member, which discounts the bundle subtotal
// by the same factor.
func (d Discount) targets(basket map[int64]int64, categories map[int64]policy.Category) []int64 {
	switch d.scope {
	case ScopeGlobal:
		ids := make([]int64, 0, len(basket))
		for id := range basket {
			ids = append(ids, id)
		}
		return ids
	case ScopeCategory:
		var ids []int64
		for id := range basket {
			if categories[id] == d.category {
				ids = append(ids, id)
			}
		}
		return ids
	case ScopeItem:
		if _, ok := basket[d.itemID]; ok {
			return []int64{d.itemID}
		}
		return nil
	case ScopeBundle:
		ids := make([]int64, 0, len(d.bundle))
		for id, need := range d.bundle {
			if basket[id] < need {
				return nil
			}
			ids = append(ids, id)
		}
		return ids
	default:
		return nil
	}
}
