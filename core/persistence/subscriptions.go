package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// subscriptionRegistry tracks the callbacks registered on an event bus so they can be
// listed and removed by identifier.
type subscriptionRegistry struct {
	bus           *events.TypedEventBus[PersistenceEvent]
	subscriptions map[string]*SubscriptionInfo // To store unsubscribe functions
	mu            sync.RWMutex
}

func newSubscriptionRegistry(bus *events.TypedEventBus[PersistenceEvent]) *subscriptionRegistry {
	return &subscriptionRegistry{
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
}

// register subscribes options.Callback. When scope is not empty the callback only sees
// events emitted for that collection.
func (r *subscriptionRegistry) register(options RegisterSubscriptionOptions, scope string) string {
	callback := options.Callback
	if scope != "" {
		inner := callback
		callback = func(ctx context.Context, event PersistenceEvent) error {
			if event.Collection == nil || *event.Collection != scope {
				return nil
			}
			return inner(ctx, event)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	unsubscribe := r.bus.Subscribe(string(options.Event), callback)
	id := uuid.New().String()

	r.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	return id
}

func (r *subscriptionRegistry) unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.subscriptions[id]
	if info == nil {
		return false
	}
	info.Unsubscribe()
	delete(r.subscriptions, id)
	return true
}

// list returns the registered subscriptions ordered by identifier.
func (r *subscriptionRegistry) list() []SubscriptionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SubscriptionInfo, 0, len(r.subscriptions))
	for _, info := range r.subscriptions {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
