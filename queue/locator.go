package queue

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/xraph/jobengine"
)

var (
	queueType = reflect.TypeFor[Queue]()
	fifoType  = reflect.TypeFor[*FIFO]()
)

// Factory constructs the queue with the given name. Factories run without
// the Locator lock held and may look up other queues from the same
// Locator; looking up the identity being constructed deadlocks.
type Factory func(name string) (Queue, error)

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithFactory registers the factory used for queue type t.
func WithFactory(t reflect.Type, f Factory) LocatorOption {
	return func(l *Locator) { l.factories[t] = f }
}

type identity struct {
	t    reflect.Type
	name string
}

// slot holds one queue under construction or built. done is closed once
// q or err is set.
type slot struct {
	done chan struct{}
	q    Queue
	err  error
}

// Locator maps (queue type, name) to exactly one queue instance.
// It is safe for concurrent use.
type Locator struct {
	mu        sync.Mutex
	factories map[reflect.Type]Factory
	slots     map[identity]*slot
	order     []identity
	closed    bool
}

// NewLocator creates a locator with factories for Queue and *FIFO.
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		factories: map[reflect.Type]Factory{
			fifoType: func(name string) (Queue, error) { return NewFIFO(name), nil },
		},
		slots: make(map[identity]*slot),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckType fails with jobengine.ErrNotQueue unless t implements Queue.
func CheckType(t reflect.Type) error {
	if t == nil || !t.Implements(queueType) {
		return jobengine.NewConfigError("register queue", t, jobengine.ErrNotQueue)
	}
	return nil
}

// Register adds or replaces the factory for queue type t.
func (l *Locator) Register(t reflect.Type, f Factory) error {
	if err := CheckType(t); err != nil {
		return err
	}
	if f == nil {
		return jobengine.NewConfigError("register queue", t, errors.New("queue: nil factory"))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[t] = f
	return nil
}

// Has reports whether a factory exists for t.
func (l *Locator) Has(t reflect.Type) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return t == queueType || l.factories[t] != nil
}

// Get returns the queue of type t with the given name, constructing it on
// first use. An empty name means jobengine.DefaultQueueName. Concurrent
// first lookups of one identity wait for a single construction; a failed
// construction is retried by the next lookup.
func (l *Locator) Get(t reflect.Type, name string) (Queue, error) {
	if err := CheckType(t); err != nil {
		return nil, err
	}
	if name == "" {
		name = jobengine.DefaultQueueName
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, jobengine.ErrQueueClosed
	}
	// The Queue contract resolves to the FIFO of the same name unless a
	// factory replaces it.
	if t == queueType && l.factories[queueType] == nil {
		t = fifoType
	}
	key := identity{t: t, name: name}
	if s, ok := l.slots[key]; ok {
		l.mu.Unlock()
		<-s.done
		return s.q, s.err
	}
	f := l.factories[t]
	if f == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("queue: no factory for %s", t)
	}
	s := &slot{done: make(chan struct{})}
	l.slots[key] = s
	l.mu.Unlock()

	q, err := construct(f, t, name)

	l.mu.Lock()
	switch {
	case err != nil:
		delete(l.slots, key)
	case l.closed:
		delete(l.slots, key)
		_ = q.Close()
		q, err = nil, jobengine.ErrQueueClosed
	default:
		l.order = append(l.order, key)
	}
	s.q, s.err = q, err
	close(s.done)
	l.mu.Unlock()
	return q, err
}

func construct(f Factory, t reflect.Type, name string) (Queue, error) {
	q, err := f(name)
	if err != nil {
		return nil, fmt.Errorf("queue: construct %s %q: %w", t, name, err)
	}
	if q == nil || !reflect.TypeOf(q).AssignableTo(t) {
		return nil, fmt.Errorf("queue: factory for %s returned %T", t, q)
	}
	return q, nil
}

// GetAs is Get for a statically known queue type.
func GetAs[Q Queue](l *Locator, name string) (Q, error) {
	var zero Q
	q, err := l.Get(reflect.TypeFor[Q](), name)
	if err != nil {
		return zero, err
	}
	return q.(Q), nil
}

// Queues returns every constructed queue in construction order.
func (l *Locator) Queues() []Queue {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Queue, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.slots[k].q)
	}
	return out
}

// Close closes every constructed queue. Later lookups fail.
func (l *Locator) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	queues := make([]Queue, 0, len(l.order))
	for _, k := range l.order {
		queues = append(queues, l.slots[k].q)
	}
	l.mu.Unlock()

	var errs []error
	for _, q := range queues {
		errs = append(errs, q.Close())
	}
	return errors.Join(errs...)
}
