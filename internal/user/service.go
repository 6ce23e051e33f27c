// Package user exposes the signed-in user's profile.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aromahaus/storefront-client/internal/auth"
	"github.com/aromahaus/storefront-client/pkg/backend"
	"github.com/aromahaus/storefront-client/pkg/cache"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

var validate = validator.New()

// UpdateInput carries the editable profile fields. Empty fields are left
// unchanged by the backend.
type UpdateInput struct {
	FirstName   string `validate:"omitempty,min=1,max=100"`
	LastName    string `validate:"omitempty,min=1,max=100"`
	Email       string `validate:"omitempty,email"`
	Phone       string `validate:"omitempty,e164"`
	Gender      string `validate:"omitempty,oneof=male female other"`
	DateOfBirth string `validate:"omitempty,datetime=2006-01-02"`
}

// Backend is the slice of the storefront client the profile service needs.
type Backend interface {
	CurrentUser(ctx context.Context) (*types.User, error)
	UpdateUser(ctx context.Context, update backend.UserUpdate) (*types.User, error)
}

type ServiceParams struct {
	Backend  Backend
	Identity *auth.Identity
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
}

type Service interface {
	Current(ctx context.Context) (*types.User, error)
	Update(ctx context.Context, input UpdateInput) (*types.User, error)
}

type service struct {
	backend  Backend
	identity *auth.Identity
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

func NewService(params ServiceParams) Service {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		backend:  params.Backend,
		identity: params.Identity,
		cache:    params.Cache,
		cacheTTL: ttl,
		logger:   params.Logger,
	}
}

func (s *service) Current(ctx context.Context) (*types.User, error) {
	if s.identity != nil && !s.identity.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
	}

	key := cache.Key("user", "me")
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached types.User
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn(s.logger.WithField(ctx, "key", key), "profile cache read failed")
		}
	}

	user, err := s.backend.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s.storeCached(ctx, key, user)
	if s.identity != nil {
		if err := s.identity.SetUser(ctx, user); err != nil {
			s.logger.Warn(ctx, "caching profile on identity failed")
		}
	}
	return user, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*types.User, error) {
	if s.identity != nil && !s.identity.IsAuthenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
	}
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid profile update")
	}

	user, err := s.backend.UpdateUser(ctx, backend.UserUpdate{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		Phone:       input.Phone,
		Gender:      input.Gender,
		DateOfBirth: input.DateOfBirth,
	})
	if err != nil {
		return nil, err
	}

	key := cache.Key("user", "me")
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "key", key), "profile cache invalidation failed")
		}
	}
	s.storeCached(ctx, key, user)
	if s.identity != nil {
		if err := s.identity.SetUser(ctx, user); err != nil {
			s.logger.Warn(ctx, "caching profile on identity failed")
		}
	}
	return user, nil
}

func (s *service) storeCached(ctx context.Context, key string, user *types.User) {
	if s.cache == nil || user == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "key", key), "profile cache write failed")
	}
}
