// Package bus is a typed, synchronous publish/subscribe mechanism that
// tells consumers when synchronized state changed.
//
// Handlers run on the publisher's goroutine, in subscription order, before
// Publish returns. A handler must not block on further synchronization I/O.
package bus

import (
	"sync"

	"github.com/carbsync/carbsync/internal/models"
)

// Kind identifies an event type.
type Kind int

const (
	// KindCollectionChanged fires after an import applied records to a
	// per-record collection.
	KindCollectionChanged Kind = iota + 1
	// KindOngoingSnapshotArrived fires after another instance's ongoing
	// meal replaced the observed projection.
	KindOngoingSnapshotArrived
)

func (k Kind) String() string {
	switch k {
	case KindCollectionChanged:
		return "collection_changed"
	case KindOngoingSnapshotArrived:
		return "ongoing_snapshot_arrived"
	default:
		return "unknown"
	}
}

// Event is implemented by every payload type.
type Event interface {
	Kind() Kind
}

// CollectionChanged reports that records of Collection were updated from
// a peer's snapshot.
type CollectionChanged struct {
	Collection models.Collection
	Peer       string
	Applied    int
}

func (CollectionChanged) Kind() Kind { return KindCollectionChanged }

// OngoingSnapshotArrived carries the ongoing meal observed on Peer.
type OngoingSnapshotArrived struct {
	Peer    string
	Entries []models.OngoingEntry
}

func (OngoingSnapshotArrived) Kind() Kind { return KindOngoingSnapshotArrived }

// Handler receives published events.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription struct {
	kind Kind
	id   uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to subscribers. The zero value is not usable;
// create one with New.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscriber)}
}

// Subscribe registers h for events of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[k] = append(b.subs[k], subscriber{id: b.nextID, handler: h})

	return Subscription{kind: k, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown or already removed subscriptions
// are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[s.kind]
	for i, sub := range list {
		if sub.id == s.id {
			b.subs[s.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every handler subscribed to its kind. The handler
// list is captured before delivery, so handlers may subscribe or
// unsubscribe without deadlocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[e.Kind()]))
	for _, sub := range b.subs[e.Kind()] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// On subscribes a handler typed to a single event type.
func On[E Event](b *Bus, fn func(E)) Subscription {
	var zero E

	return b.Subscribe(zero.Kind(), func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}
