// Package auth owns the signed-in identity and the login/logout transitions,
// including the guest cart handover that happens at the login boundary.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aromahaus/storefront-client/pkg/kvstore"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

const (
	tokenKey   = "auth:token"
	profileKey = "auth:profile"
)

// Identity holds the bearer token and profile of the signed-in user. The
// token is sealed at rest when the local store has a seal key. A token whose
// JWT expiry has passed is treated as absent on hydration, so a relaunched
// client never starts in a half-authenticated state.
type Identity struct {
	mu     sync.RWMutex
	token  string
	user   *types.User
	store  *kvstore.Store
	logger *logger.Logger
}

// NewIdentity hydrates the identity from the local store.
func NewIdentity(ctx context.Context, store *kvstore.Store, logg *logger.Logger) *Identity {
	id := &Identity{store: store, logger: logg}
	if store == nil {
		return id
	}

	token, err := readToken(ctx, store)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) && logg != nil {
			logg.Warn(ctx, "discarding unreadable auth token")
		}
		return id
	}
	if tokenExpired(token) {
		if logg != nil {
			logg.Info(ctx, "stored auth token expired, starting signed out")
		}
		_ = store.Delete(ctx, tokenKey)
		_ = store.Delete(ctx, profileKey)
		return id
	}

	id.token = token
	var user types.User
	if err := store.GetJSON(ctx, profileKey, &user); err == nil {
		id.user = &user
	}
	return id
}

func readToken(ctx context.Context, store *kvstore.Store) (string, error) {
	if store.CanSeal() {
		raw, err := store.GetSealed(ctx, tokenKey)
		if err == nil {
			return string(raw), nil
		}
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return "", err
		}
		// A plain token from before the seal key was configured is still
		// readable; it gets resealed on the next sign-in.
	}
	raw, err := store.Get(ctx, tokenKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// tokenExpired inspects the JWT exp claim without verifying the signature.
// Verification is the backend's job; locally the claim only decides whether
// the token is worth presenting at all. Opaque tokens are kept as-is.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// IsAuthenticated reports whether a usable token is present.
func (i *Identity) IsAuthenticated() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token != ""
}

// Token returns the current bearer token, or "" when signed out.
func (i *Identity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

// User returns the cached profile of the signed-in user, or nil.
func (i *Identity) User() *types.User {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.user == nil {
		return nil
	}
	u := *i.user
	return &u
}

// Set stores the authenticated identity and persists it.
func (i *Identity) Set(ctx context.Context, token string, user *types.User) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.token = token
	i.user = user

	if i.store == nil {
		return nil
	}
	var err error
	if i.store.CanSeal() {
		err = i.store.PutSealed(ctx, tokenKey, []byte(token))
	} else {
		err = i.store.Put(ctx, tokenKey, []byte(token))
	}
	if err != nil {
		return err
	}
	if user != nil {
		return i.store.PutJSON(ctx, profileKey, user)
	}
	return i.store.Delete(ctx, profileKey)
}

// SetUser refreshes the cached profile without touching the token.
func (i *Identity) SetUser(ctx context.Context, user *types.User) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.user = user
	if i.store == nil || user == nil {
		return nil
	}
	return i.store.PutJSON(ctx, profileKey, user)
}

// Clear signs the user out locally.
func (i *Identity) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.token = ""
	i.user = nil
	if i.store == nil {
		return nil
	}
	if err := i.store.Delete(ctx, tokenKey); err != nil {
		return err
	}
	return i.store.Delete(ctx, profileKey)
}
