package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrPolicyFull is returned when a composite already holds two children.
	ErrPolicyFull = errors.New("policy composite already has two children")
	// ErrNotComposite is returned when a child is added to a leaf policy.
	ErrNotComposite = errors.New("policy is not a composite")
	// ErrUnknownOperator indicates a composite was built without a valid operator.
	ErrUnknownOperator = errors.New("policy operator is not set")
)

// Category labels an item for category-scoped rules.
type Category string

// Op combines the results of a composite's children.
type Op uint8

const (
	OpAnd Op = iota + 1
	OpOr
	OpXor
)

// String returns the operator name for logging.
func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	default:
		return "unknown"
	}
}

func (o Op) valid() bool {
	return o == OpAnd || o == OpOr || o == OpXor
}

type kind uint8

const (
	kindLeaf kind = iota + 1
	kindComposite
)

// Leaf describes the optional conditions of a leaf policy. A leaf with no
// fields set always evaluates true.
type Leaf struct {
	// Threshold is the minimum quantity required by the ItemID or Category
	// condition. Defaults to 1 when a scope is set without it.
	Threshold *int64
	// ItemID requires the basket to contain at least Threshold units of the item.
	ItemID *int64
	// Category requires some basket item of the category with at least
	// Threshold units.
	Category *Category
	// BasketValue requires the basket total at running prices to reach the value.
	BasketValue *float64
}

// Policy is a boolean eligibility gate evaluated against a candidate basket.
// It is immutable once attached to a shop; build a new tree to change it.
type Policy struct {
	kind kind
	op   Op
	leaf Leaf

	children []*Policy
}

// NewLeaf builds a leaf policy from the given conditions.
func NewLeaf(l Leaf) *Policy {
	return &Policy{kind: kindLeaf, leaf: l}
}

// NewComposite builds an empty composite with the given operator. The operator
// must be one of OpAnd, OpOr or OpXor; there is no default.
func NewComposite(op Op) (*Policy, error) {
	if !op.valid() {
		return nil, ErrUnknownOperator
	}
	return &Policy{kind: kindComposite, op: op}, nil
}

// AddPolicy appends a child to the first free slot of a composite. A composite
// holds at most two children.
func (p *Policy) AddPolicy(child *Policy) error {
	if p == nil || p.kind != kindComposite {
		return ErrNotComposite
	}
	if child == nil {
		return errors.New("policy child is nil")
	}
	if len(p.children) >= 2 {
		return ErrPolicyFull
	}
	p.children = append(p.children, child)
	return nil
}

// Operator reports the composite operator, or false for a leaf.
func (p *Policy) Operator() (Op, bool) {
	if p == nil || p.kind != kindComposite {
		return 0, false
	}
	return p.op, true
}

// Evaluate reports whether the basket satisfies the policy. Prices are the
// current running prices used for basket-value conditions; categories map
// items to their category. A malformed tree (unset operator) fails fast.
func (p *Policy) Evaluate(basket map[int64]int64, prices map[int64]float64, categories map[int64]Category) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch p.kind {
	case kindLeaf:
		return p.leaf.evaluate(basket, prices, categories), nil
	case kindComposite:
		return p.evaluateComposite(basket, prices, categories)
	default:
		return false, fmt.Errorf("policy node is not initialised: %w", ErrUnknownOperator)
	}
}

func (p *Policy) evaluateComposite(basket map[int64]int64, prices map[int64]float64, categories map[int64]Category) (bool, error) {
	if !p.op.valid() {
		return false, ErrUnknownOperator
	}
	// An empty composite permits; a single child decides on its own under
	// every operator.
	if len(p.children) == 0 {
		return true, nil
	}
	left, err := p.children[0].Evaluate(basket, prices, categories)
	if err != nil {
		return false, err
	}
	if len(p.children) == 1 {
		return left, nil
	}
	right, err := p.children[1].Evaluate(basket, prices, categories)
	if err != nil {
		return false, err
	}
	switch p.op {
	case OpAnd:
		return left && right, nil
	case OpOr:
		return left || right, nil
	default:
		return left != right, nil
	}
}

func (l Leaf) evaluate(basket map[int64]int64, prices map[int64]float64, categories map[int64]Category) bool {
	threshold := int64(1)
	if l.Threshold != nil {
		threshold = *l.Threshold
	}
	if l.ItemID != nil {
		qty, ok := basket[*l.ItemID]
		if !ok || qty < threshold {
			return false
		}
	}
	if l.Category != nil {
		if !categoryMet(basket, categories, *l.Category, threshold) {
			return false
		}
	}
	if l.BasketValue != nil {
		var total float64
		for id, qty := range basket {
			total += float64(qty) * prices[id]
		}
		if total < *l.BasketValue {
			return false
		}
	}
	return true
}

func categoryMet(basket map[int64]int64, categories map[int64]Category, want Category, threshold int64) bool {
	for id, qty := range basket {
		if qty <= 0 {
			continue
		}
		if categories[id] == want && qty >= threshold {
			return true
		}
	}
	return false
}
