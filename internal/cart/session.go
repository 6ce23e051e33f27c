package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/aromahaus/storefront-client/pkg/kvstore"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

const sessionPointerKey = "cart:session"

// SessionPointer holds the id of the user's active server cart. It survives
// restarts through the device store so a relaunched client can mutate its
// cart without a prior fetch.
type SessionPointer struct {
	mu     sync.Mutex
	cartID string
	store  *kvstore.Store
	logger *logger.Logger
}

// NewSessionPointer hydrates the pointer from the local store.
func NewSessionPointer(ctx context.Context, store *kvstore.Store, logg *logger.Logger) *SessionPointer {
	p := &SessionPointer{store: store, logger: logg}
	if store == nil {
		return p
	}
	raw, err := store.Get(ctx, sessionPointerKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) && logg != nil {
			logg.Warn(logg.WithField(ctx, "key", sessionPointerKey), "discarding unreadable session pointer")
		}
		return p
	}
	p.cartID = string(raw)
	return p
}

// Get returns the active cart id, or "" when no session exists.
func (p *SessionPointer) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cartID
}

// Set records the active cart id. An empty id clears the pointer.
func (p *SessionPointer) Set(ctx context.Context, cartID string) {
	if cartID == "" {
		p.Clear(ctx)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cartID = cartID
	if p.store == nil {
		return
	}
	if err := p.store.Put(ctx, sessionPointerKey, []byte(cartID)); err != nil && p.logger != nil {
		p.logger.Error(p.logger.WithCartID(ctx, cartID), "persisting session pointer", err)
	}
}

// Clear forgets the active cart id.
func (p *SessionPointer) Clear(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cartID = ""
	if p.store == nil {
		return
	}
	if err := p.store.Delete(ctx, sessionPointerKey); err != nil && p.logger != nil {
		p.logger.Error(ctx, "clearing session pointer", err)
	}
}
