package controller

import "sync"

// FavoriteToggled is published when a detail view flips a post's favorite flag.
type FavoriteToggled struct {
	ID       int64
	Favorite bool
}

// Relay fans favorite toggles out to subscribers, in subscription order.
// Safe for concurrent use.
type Relay struct {
	mu       sync.RWMutex
	handlers map[int]func(FavoriteToggled)
	order    []int
	next     int
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{handlers: make(map[int]func(FavoriteToggled))}
}

// Subscribe registers h and returns a function that removes it.
func (r *Relay) Subscribe(h func(FavoriteToggled)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.handlers[id] = h
	r.order = append(r.order, id)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to every subscriber synchronously.
func (r *Relay) Publish(ev FavoriteToggled) {
	r.mu.RLock()
	hs := make([]func(FavoriteToggled), 0, len(r.order))
	for _, id := range r.order {
		hs = append(hs, r.handlers[id])
	}
	r.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Bind routes every toggle published on r into c.
func Bind(r *Relay, c *PostsController) (unsubscribe func()) {
	return r.Subscribe(func(ev FavoriteToggled) {
		c.ApplyFavoriteToggle(ev.ID, ev.Favorite)
	})
}
