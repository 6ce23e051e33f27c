package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/kvstore"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

const guestCartKey = "cart:guest"

// GuestStore is the authoritative cart while the user is signed out. All
// mutations apply locally and persist to the device store; nothing here ever
// talks to the backend.
type GuestStore struct {
	mu     sync.Mutex
	lines  []types.CartLine
	store  *kvstore.Store
	logger *logger.Logger
}

// NewGuestStore hydrates the guest cart from the local store. A missing or
// unreadable snapshot starts the cart empty rather than failing construction.
func NewGuestStore(ctx context.Context, store *kvstore.Store, logg *logger.Logger) *GuestStore {
	g := &GuestStore{store: store, logger: logg}

	if store == nil {
		return g
	}
	var lines []types.CartLine
	if err := store.GetJSON(ctx, guestCartKey, &lines); err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) && logg != nil {
			logg.Warn(logg.WithField(ctx, "key", guestCartKey), "discarding unreadable guest cart snapshot")
		}
		return g
	}
	g.lines = lines
	return g
}

// Add inserts the line, merging quantities into an existing line for the same
// (product, size) variant instead of duplicating it.
func (g *GuestStore) Add(ctx context.Context, input LineInput) (types.CartLine, error) {
	line, err := input.sanitize()
	if err != nil {
		return types.CartLine{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.lines {
		if g.lines[i].SameVariant(line) {
			g.lines[i].Quantity += line.Quantity
			g.lines[i].Recompute()
			g.persist(ctx)
			return g.lines[i], nil
		}
	}

	line.LineID = "guest_" + uuid.NewString()
	g.lines = append(g.lines, line)
	g.persist(ctx)
	return line, nil
}

// UpdateQuantity sets the quantity of the line with the given id. A quantity
// of zero or less removes the line. Unknown ids are a no-op.
func (g *GuestStore) UpdateQuantity(ctx context.Context, lineID string, quantity int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.lines {
		if g.lines[i].LineID != lineID {
			continue
		}
		if quantity <= 0 {
			g.lines = append(g.lines[:i], g.lines[i+1:]...)
		} else {
			g.lines[i].Quantity = quantity
			g.lines[i].Recompute()
		}
		g.persist(ctx)
		return
	}
}

// Remove deletes the line with the given id. Unknown ids are a no-op.
func (g *GuestStore) Remove(ctx context.Context, lineID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.lines {
		if g.lines[i].LineID == lineID {
			g.lines = append(g.lines[:i], g.lines[i+1:]...)
			g.persist(ctx)
			return
		}
	}
}

// Clear empties the guest cart. Clearing an already empty cart is a no-op.
func (g *GuestStore) Clear(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.lines) == 0 {
		return
	}
	g.lines = nil
	g.persist(ctx)
}

// Lines returns a copy of the current guest cart contents.
func (g *GuestStore) Lines() []types.CartLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyLines(g.lines)
}

// Total returns the sum of all line totals.
func (g *GuestStore) Total() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sumLines(g.lines)
}

// ItemCount returns the sum of all line quantities.
func (g *GuestStore) ItemCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return countItems(g.lines)
}

// persist writes the snapshot under the guest cart key. Callers hold the
// mutex. A write failure keeps the in-memory cart intact and is only logged:
// cart state must never be lost to a storage hiccup.
func (g *GuestStore) persist(ctx context.Context) {
	if g.store == nil {
		return
	}
	if err := g.store.PutJSON(ctx, guestCartKey, g.lines); err != nil && g.logger != nil {
		g.logger.Error(g.logger.WithField(ctx, "key", guestCartKey), "persisting guest cart", err)
	}
}
