package devstub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aromahaus/storefront-client/pkg/types"
)

// memoryStore is the stub backend's whole world: users, pending OTP codes,
// and per-user carts, all process-local.
type memoryStore struct {
	mu    sync.Mutex
	users map[string]*types.User // keyed by user id
	byKey map[string]string      // email or phone -> user id
	otps  map[string]string      // email or phone -> pending code
	carts map[string]*stubCart   // user id -> cart
}

type stubCart struct {
	cartID string
	lines  []types.CartLine
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[string]*types.User),
		byKey: make(map[string]string),
		otps:  make(map[string]string),
		carts: make(map[string]*stubCart),
	}
}

// stubOTP is the fixed code the stub accepts. Real delivery channels do not
// exist in a dev stub; tests and manual flows both use this value.
const stubOTP = "123456"

func (s *memoryStore) issueOTP(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[key] = stubOTP
	return stubOTP
}

func (s *memoryStore) consumeOTP(key, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.otps[key]
	if !ok || pending != code {
		return false
	}
	delete(s.otps, key)
	return true
}

// upsertUser finds or creates the user behind an email/phone identity.
func (s *memoryStore) upsertUser(email, phone string) *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := email
	if key == "" {
		key = phone
	}
	if id, ok := s.byKey[key]; ok {
		u := *s.users[id]
		return &u
	}

	user := &types.User{
		ID:        uuid.NewString(),
		Email:     email,
		Phone:     phone,
		Role:      "customer",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.users[user.ID] = user
	if email != "" {
		s.byKey[email] = user.ID
	}
	if phone != "" {
		s.byKey[phone] = user.ID
	}
	u := *user
	return &u
}

func (s *memoryStore) userByID(id string) *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil
	}
	u := *user
	return &u
}

func (s *memoryStore) updateUser(id string, apply func(*types.User)) *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil
	}
	apply(user)
	user.UpdatedAt = time.Now().UTC()
	u := *user
	return &u
}

func (s *memoryStore) cartOf(userID string) *stubCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		return nil
	}
	return &stubCart{cartID: cart.cartID, lines: append([]types.CartLine(nil), cart.lines...)}
}

// addLine merges into an existing (product, size) line or appends, creating
// the cart on first use. Returns the cart id.
func (s *memoryStore) addLine(userID string, line types.CartLine) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.ensureCartLocked(userID)
	mergeLine(cart, line)
	return cart.cartID
}

func (s *memoryStore) updateLine(userID, cartID, productID string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok || cart.cartID != cartID {
		return false
	}
	for i := range cart.lines {
		if cart.lines[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			cart.lines = append(cart.lines[:i], cart.lines[i+1:]...)
		} else {
			cart.lines[i].Quantity = quantity
			cart.lines[i].Recompute()
		}
		return true
	}
	return false
}

func (s *memoryStore) removeLine(userID, cartID, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok || cart.cartID != cartID {
		return false
	}
	for i := range cart.lines {
		if cart.lines[i].ProductID == productID {
			cart.lines = append(cart.lines[:i], cart.lines[i+1:]...)
			return true
		}
	}
	return false
}

// transfer merges a guest cart into the user's server cart and returns the
// resulting snapshot.
func (s *memoryStore) transfer(userID string, guestLines []types.CartLine) *stubCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.ensureCartLocked(userID)
	for _, line := range guestLines {
		mergeLine(cart, line)
	}
	return &stubCart{cartID: cart.cartID, lines: append([]types.CartLine(nil), cart.lines...)}
}

func (s *memoryStore) ensureCartLocked(userID string) *stubCart {
	cart, ok := s.carts[userID]
	if !ok {
		cart = &stubCart{cartID: uuid.NewString()}
		s.carts[userID] = cart
	}
	return cart
}

func mergeLine(cart *stubCart, line types.CartLine) {
	for i := range cart.lines {
		if cart.lines[i].SameVariant(line) {
			cart.lines[i].Quantity += line.Quantity
			cart.lines[i].Recompute()
			return
		}
	}
	line.LineID = uuid.NewString()
	line.Recompute()
	cart.lines = append(cart.lines, line)
}
