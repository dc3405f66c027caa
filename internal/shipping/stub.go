package shipping

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-memory Method used by tests and the load simulator.
type Recorder struct {
	mu        sync.Mutex
	shipments []Shipment
	seq       int
}

// NewRecorder returns an empty recording shipping method.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ProcessShipment implements Method.
func (r *Recorder) ProcessShipment(_ context.Context, shipment Shipment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.shipments = append(r.shipments, shipment)
	return fmt.Sprintf("ship-%d", r.seq), nil
}

// Shipments returns a copy of the recorded shipments.
func (r *Recorder) Shipments() []Shipment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Shipment, len(r.shipments))
	copy(out, r.shipments)
	return out
}
