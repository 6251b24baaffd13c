package cart

import "sync"

// Registry holds one cart per rep and serializes operations on it. A cart
// that is empty once no operation holds it is dropped.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*session
}

type session struct {
	mu   sync.Mutex
	cart *Cart
	refs int // guarded by Registry.mu
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*session)}
}

// With runs fn with exclusive access to userID's cart, creating it on first use.
func (r *Registry) With(userID string, fn func(c *Cart) error) error {
	s := r.acquire(userID)
	defer r.release(userID, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cart)
}

// Discard forgets userID's cart whatever it holds.
func (r *Registry) Discard(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
}

// Len is the number of carts currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

func (r *Registry) acquire(userID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.carts[userID]
	if !ok {
		s = &session{cart: New()}
		r.carts[userID] = s
	}
	s.refs++
	return s
}

func (r *Registry) release(userID string, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	// With no holders left nobody else can touch s.cart.
	if s.refs == 0 && s.cart.IsEmpty() && r.carts[userID] == s {
		delete(r.carts, userID)
	}
}
