package auth

import (
	"context"

	"go.uber.org/multierr"

	"github.com/aromahaus/storefront-client/internal/cart"
	"github.com/aromahaus/storefront-client/pkg/backend"
	"github.com/aromahaus/storefront-client/pkg/cache"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/metrics"
	"github.com/aromahaus/storefront-client/pkg/types"
)

// Backend is the slice of the storefront client the auth flows need.
type Backend interface {
	Login(ctx context.Context, creds backend.Credentials, password, otp string) (*backend.AuthResult, error)
	SendOTP(ctx context.Context, creds backend.Credentials) error
	VerifyOTP(ctx context.Context, creds backend.Credentials, otp string) (*backend.AuthResult, error)
	TransferGuestCart(ctx context.Context, guestLines []types.CartLine) (*backend.ServerCart, error)
}

type ServiceParams struct {
	Backend  Backend
	Identity *Identity
	Guest    *cart.GuestStore
	Mirror   *cart.Mirror
	Session  *cart.SessionPointer
	Cache    cache.Cache
	Logger   *logger.Logger
	Metrics  *metrics.ClientMetrics
}

// Service runs the sign-in and sign-out flows and the cart handover tied to
// them.
type Service interface {
	Login(ctx context.Context, creds backend.Credentials, password, otp string) (*types.User, error)
	SendOTP(ctx context.Context, creds backend.Credentials) error
	VerifyOTP(ctx context.Context, creds backend.Credentials, otp string) (*types.User, error)
	Logout(ctx context.Context) error
}

type service struct {
	backend  Backend
	identity *Identity
	guest    *cart.GuestStore
	mirror   *cart.Mirror
	session  *cart.SessionPointer
	cache    cache.Cache
	logger   *logger.Logger
	metrics  *metrics.ClientMetrics
}

func NewService(params ServiceParams) Service {
	return &service{
		backend:  params.Backend,
		identity: params.Identity,
		guest:    params.Guest,
		mirror:   params.Mirror,
		session:  params.Session,
		cache:    params.Cache,
		logger:   params.Logger,
		metrics:  params.Metrics,
	}
}

func (s *service) Login(ctx context.Context, creds backend.Credentials, password, otp string) (*types.User, error) {
	result, err := s.backend.Login(ctx, creds, password, otp)
	if err != nil {
		return nil, err
	}
	return s.completeSignIn(ctx, result)
}

func (s *service) SendOTP(ctx context.Context, creds backend.Credentials) error {
	return s.backend.SendOTP(ctx, creds)
}

func (s *service) VerifyOTP(ctx context.Context, creds backend.Credentials, otp string) (*types.User, error) {
	result, err := s.backend.VerifyOTP(ctx, creds, otp)
	if err != nil {
		return nil, err
	}
	return s.completeSignIn(ctx, result)
}

// completeSignIn persists the identity and hands the guest cart to the
// server. The guest cart is cleared after the transfer attempt no matter how
// it went: lines the user collected signed out survive at most one login
// boundary, never two.
func (s *service) completeSignIn(ctx context.Context, result *backend.AuthResult) (*types.User, error) {
	user := result.User
	if err := s.identity.Set(ctx, result.Token, &user); err != nil {
		return nil, err
	}
	lctx := s.logger.WithUserID(ctx, user.ID)
	s.logger.Info(lctx, "user signed in")

	s.transferGuestCart(lctx)
	s.guest.Clear(ctx)

	return &user, nil
}

// transferGuestCart moves the accumulated guest lines to the server cart. A
// failed transfer is logged and counted but never blocks login completion.
func (s *service) transferGuestCart(ctx context.Context) {
	lines := s.guest.Lines()
	if len(lines) == 0 {
		return
	}

	serverCart, err := s.backend.TransferGuestCart(ctx, lines)
	if err != nil {
		s.metrics.IncTransfer("failure")
		s.logger.Error(s.logger.WithField(ctx, "guest_lines", len(lines)), "guest cart transfer failed", err)
		return
	}
	if serverCart == nil || serverCart.CartID == "" {
		s.metrics.IncTransfer("empty")
		return
	}

	s.session.Set(ctx, serverCart.CartID)
	s.mirror.SetFromServer(serverCart.Lines)
	s.metrics.IncTransfer("success")
	s.logger.Info(s.logger.WithCartID(ctx, serverCart.CartID), "guest cart transferred")
}

// Logout clears the identity, the server cart mirror, and the session
// pointer. The guest cart is left untouched: signing out never restores or
// inherits a previous guest cart.
func (s *service) Logout(ctx context.Context) error {
	var errs error

	errs = multierr.Append(errs, s.identity.Clear(ctx))
	s.mirror.Clear()
	s.session.Clear(ctx)
	if s.cache != nil {
		errs = multierr.Append(errs, s.cache.Invalidate(ctx, cache.Key("user", "me")))
	}

	if errs != nil {
		s.logger.Error(ctx, "logout finished with errors", errs)
		return errs
	}
	s.logger.Info(ctx, "user signed out")
	return nil
}
