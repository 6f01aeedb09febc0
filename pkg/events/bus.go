// Package events delivers engine notifications to external collaborators
// (search indexing, notification fan-out). Delivery is fire-and-forget:
// emission never blocks a mutation and a panicking subscriber never fails
// one.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inkwell-cms/inkwell/pkg/metrics"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

type Bus struct {
	mu   sync.RWMutex
	subs []func(types.Event)
	wg   sync.WaitGroup
	log  *logrus.Logger
}

func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}
	return &Bus{log: log}
}

// Subscribe registers a handler for all events. Handlers run on their own
// goroutine per event and must be safe for concurrent invocation.
func (b *Bus) Subscribe(fn func(types.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Emit delivers ev to every subscriber asynchronously.
func (b *Bus) Emit(ev types.Event) {
	b.mu.RLock()
	subs := make([]func(types.Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	metrics.EventsEmitted.Inc()
	for _, fn := range subs {
		fn := fn
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.WithFields(logrus.Fields{
						"event": ev.EventName(),
						"panic": r,
					}).Error("event subscriber panicked")
				}
			}()
			fn(ev)
		}()
	}
}

// Drain blocks until all in-flight deliveries have finished. Used on
// shutdown and in tests.
func (b *Bus) Drain() {
	b.wg.Wait()
}
