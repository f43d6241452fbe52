package cart

import "sync"

// Store keeps one Cart per customer for the lifetime of the process.
// It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{carts: make(map[string]*Cart)}
}

// Update runs fn against the owner's cart under the store lock, creating the
// cart on first use, and returns the resulting snapshot.
func (s *Store) Update(owner string, fn func(c *Cart)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[owner]
	if !ok {
		c = New()
		s.carts[owner] = c
	}
	fn(c)
	snap := c.Snapshot()
	if c.Len() == 0 {
		delete(s.carts, owner)
	}
	return snap
}

// View returns the owner's cart contents. Owners without a cart see an
// empty snapshot.
func (s *Store) View(owner string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[owner]
	if !ok {
		return New().Snapshot()
	}
	return c.Snapshot()
}

// Consume removes lines previously read from the owner's cart, leaving
// anything added since in place.
func (s *Store) Consume(owner string, lines []Line) Snapshot {
	return s.Update(owner, func(c *Cart) { c.Subtract(lines) })
}

// Clear drops the owner's cart.
func (s *Store) Clear(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, owner)
}
