// Package events implements the Event Bus: the single channel background
// components (resolution, compilation, eviction) use to hand progress and
// diagnostic notifications to the transport writer, decoupling producers
// from the one goroutine allowed to write to the client connection.
package events

import (
	"sync"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
)

// Kind identifies the event payload shape.
type Kind int

const (
	KindResolutionStarted Kind = iota
	KindResolutionProgress
	KindResolutionFinished
	KindResolutionFailed
	KindDiagnosticsPublished
	KindScopeEvicted
	KindScopeRevived
	KindMemoryUsage
	KindLogMessage
)

// Diagnostic mirrors one compiler-reported issue (§4.5).
type Diagnostic struct {
	Range    document.Range
	Severity string
	Code     string
	Message  string
	Source   string
}

// Event is the single envelope type carried on the bus. Only the field(s)
// relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	ProjectRoot string
	Message     string

	URI         document.URI
	Diagnostics []Diagnostic

	Level string // for KindLogMessage: "info" | "warn" | "error"

	// For KindMemoryUsage: the Scope Manager's sampled heap figures and
	// lifecycle-state cardinalities (§4.4 "Counts").
	HeapUsed   uint64
	HeapSys    uint64
	Active     int
	Evicted    int
	Unresolved int
}

// Bus is a fan-in channel with multiple producers and exactly one consumer
// (the transport writer goroutine). Publish never blocks the caller
// indefinitely: the channel is buffered, and a full buffer drops the oldest
// pending event rather than stalling a compiler or resolution goroutine.
type Bus struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewBus creates a Bus with the given buffer capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues ev. If the buffer is full, the oldest queued event is
// dropped to make room — background producers must never block on a slow
// or absent consumer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- ev:
		return
	default:
	}
	select {
	case <-b.ch:
	default:
	}
	select {
	case b.ch <- ev:
	default:
	}
}

// Events returns the receive-only channel for the consumer goroutine.
func (b *Bus) Events() <-chan Event { return b.ch }

// Close shuts the bus down; further Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
