package payment

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-memory Method used by tests and the load simulator. It
// records every charge and refund it sees.
type Recorder struct {
	mu      sync.Mutex
	charges []Charge
	refunds map[string]int64
	seq     int
	// Fail, when set, makes ProcessPayment return this error.
	Fail error
}

// NewRecorder returns an empty recording payment method.
func NewRecorder() *Recorder {
	return &Recorder{refunds: make(map[string]int64)}
}

// ProcessPayment implements Method.
func (r *Recorder) ProcessPayment(_ context.Context, charge Charge) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return Result{}, r.Fail
	}
	r.seq++
	r.charges = append(r.charges, charge)
	return Result{Reference: fmt.Sprintf("pay-%d", r.seq), Captured: true}, nil
}

// RefundPayment implements Method.
func (r *Recorder) RefundPayment(_ context.Context, reference string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds[reference] += amount
	return nil
}

// Charges returns a copy of the recorded charges.
func (r *Recorder) Charges() []Charge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Charge, len(r.charges))
	copy(out, r.charges)
	return out
}

// Refunded returns the amount refunded against a reference.
func (r *Recorder) Refunded(reference string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refunds[reference]
}
