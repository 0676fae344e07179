package identity

import (
	"sync"
)

// Listeners is a registry providers use to deliver change events. Emit calls are
// serialized so handlers see events in emission order, once each.
type Listeners struct {
	mu       sync.Mutex
	emitMu   sync.Mutex
	nextID   int
	handlers map[int]ChangeHandler
	order    []int
}

func NewListeners() *Listeners {
	return &Listeners{handlers: make(map[int]ChangeHandler)}
}

// Add registers handler and returns an idempotent unregister function.
func (l *Listeners) Add(handler ChangeHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *Listeners) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.handlers, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Emit delivers session to every registered handler in registration order.
func (l *Listeners) Emit(session *Session) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	for _, h := range l.snapshot() {
		h(session)
	}
}

func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Listeners) snapshot() []ChangeHandler {
	l.mu.Lock()
	defer l.mu.Unlock()

	hs := make([]ChangeHandler, 0, len(l.order))
	for _, id := range l.order {
		hs = append(hs, l.handlers[id])
	}
	return hs
}
