package sessions

import "sync"

type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(Snapshot)
	order  []int
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[int]func(Snapshot))}
}

func (l *subscribers) add(fn func(Snapshot)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (l *subscribers) notify(snap Snapshot) {
	l.mu.Lock()
	fns := make([]func(Snapshot), 0, len(l.order))
	for _, id := range l.order {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
