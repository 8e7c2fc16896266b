// Package service provides business logic between API handlers and data
// stores: mutation orchestration, chain verification, and queue delivery.
package service

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/models"
)

// Notifier fans committed change events out to subscribers. Callbacks fire
// only after the mutation transaction has committed, each on its own
// goroutine — a slow or panicking subscriber never blocks the mutation path
// or its peers.
type Notifier struct {
	log *logrus.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[subKey]map[int]func(models.ChangeEvent)
}

type subKey struct {
	tenantID   string
	collection string
}

// NewNotifier creates a Notifier.
func NewNotifier(log *logrus.Logger) *Notifier {
	return &Notifier{
		log:  log,
		subs: make(map[subKey]map[int]func(models.ChangeEvent)),
	}
}

// Subscribe registers a callback for committed mutations in one tenant's
// collection. An empty collection matches every collection in the tenant;
// an empty tenant matches every tenant. The returned function removes the
// subscription; calling it more than once is harmless.
func (n *Notifier) Subscribe(tenantID, collection string, fn func(models.ChangeEvent)) func() {
	key := subKey{tenantID: tenantID, collection: collection}

	n.mu.Lock()
	n.nextID++
	id := n.nextID

	if n.subs[key] == nil {
		n.subs[key] = make(map[int]func(models.ChangeEvent))
	}
	n.subs[key][id] = fn
	n.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			delete(n.subs[key], id)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
		})
	}
}

// Publish delivers an event to every subscriber of its tenant+collection,
// including wildcard subscriptions. Non-blocking for the caller.
func (n *Notifier) Publish(event models.ChangeEvent) {
	keys := [4]subKey{
		{tenantID: event.TenantID, collection: event.Collection},
		{tenantID: event.TenantID},
		{collection: event.Collection},
		{},
	}

	n.mu.RLock()
	var callbacks []func(models.ChangeEvent)
	for _, key := range keys {
		for _, fn := range n.subs[key] {
			callbacks = append(callbacks, fn)
		}
	}
	n.mu.RUnlock()

	for _, fn := range callbacks {
		go n.invoke(fn, event)
	}
}

func (n *Notifier) invoke(fn func(models.ChangeEvent), event models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.log.WithFields(logrus.Fields{
				"collection": event.Collection,
				"entity_id":  event.EntityID,
				"panic":      r,
			}).Error("change subscriber panicked")
		}
	}()

	fn(event)
}
