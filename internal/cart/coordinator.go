package cart

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/backend"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/metrics"
	"github.com/aromahaus/storefront-client/pkg/types"
)

// Mode says which store currently backs the cart.
type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// View is a point-in-time read of the active cart.
type View struct {
	Mode      Mode
	CartID    string
	Lines     []types.CartLine
	Total     decimal.Decimal
	ItemCount int
}

// Backend is the slice of the storefront client the coordinator needs for
// authenticated cart traffic.
type Backend interface {
	FetchCart(ctx context.Context) (*backend.ServerCart, error)
	AddToCart(ctx context.Context, line types.CartLine) (string, error)
	UpdateCartLine(ctx context.Context, cartID, productID string, quantity int) error
	RemoveCartLine(ctx context.Context, cartID, productID string) error
}

// AuthState reports whether a signed-in identity is present.
type AuthState interface {
	IsAuthenticated() bool
}

// CoordinatorParams bundles the coordinator's collaborators.
type CoordinatorParams struct {
	Guest   *GuestStore
	Mirror  *Mirror
	Session *SessionPointer
	Auth    AuthState
	Backend Backend
	Logger  *logger.Logger
	Metrics *metrics.ClientMetrics
}

// Coordinator is the single cart façade the application talks to. It routes
// each operation to the guest store or the server mirror based on auth state
// so callers never branch on it themselves.
//
// Authenticated mutations follow a strict mutate-then-refetch order within
// one call. Two rapid calls can still race each other's refetch; the last
// server response wins, which is acceptable for a single-user cart.
type Coordinator struct {
	guest    *GuestStore
	mirror   *Mirror
	session  *SessionPointer
	auth     AuthState
	backend  Backend
	logger   *logger.Logger
	metrics  *metrics.ClientMetrics
	inFlight atomic.Int64
}

func NewCoordinator(params CoordinatorParams) *Coordinator {
	return &Coordinator{
		guest:   params.Guest,
		mirror:  params.Mirror,
		session: params.Session,
		auth:    params.Auth,
		backend: params.Backend,
		logger:  params.Logger,
		metrics: params.Metrics,
	}
}

// CurrentCart returns the best-known local state of the active cart. It
// never fails: with no data it returns an empty view.
func (c *Coordinator) CurrentCart() View {
	if c.authenticated() {
		return View{
			Mode:      ModeAuthenticated,
			CartID:    c.session.Get(),
			Lines:     c.mirror.Lines(),
			Total:     c.mirror.Total(),
			ItemCount: c.mirror.ItemCount(),
		}
	}
	return View{
		Mode:      ModeGuest,
		Lines:     c.guest.Lines(),
		Total:     c.guest.Total(),
		ItemCount: c.guest.ItemCount(),
	}
}

// IsLoading reports whether any authenticated-path operation is in flight.
// Guest operations are synchronous and never report loading.
func (c *Coordinator) IsLoading() bool {
	return c.inFlight.Load() > 0
}

// Add puts a product in the active cart. Guest adds apply locally; when
// signed in the line goes to the backend and the mirror is refreshed from
// the server response, never guessed at locally.
func (c *Coordinator) Add(ctx context.Context, input LineInput) error {
	if !c.authenticated() {
		if _, err := c.guest.Add(ctx, input); err != nil {
			c.metrics.IncFailure("add", string(ModeGuest))
			return err
		}
		c.metrics.IncSuccess("add", string(ModeGuest))
		return nil
	}

	line, err := input.sanitize()
	if err != nil {
		c.metrics.IncFailure("add", string(ModeAuthenticated))
		return err
	}

	defer c.track()()

	cartID, err := c.backend.AddToCart(ctx, line)
	if err != nil {
		c.metrics.IncFailure("add", string(ModeAuthenticated))
		c.logger.Error(c.logger.WithOperation(ctx, "add"), "adding to server cart", err)
		return err
	}
	if cartID != "" {
		c.session.Set(ctx, cartID)
	}

	c.refreshMirror(ctx, "add")
	c.metrics.IncSuccess("add", string(ModeAuthenticated))
	return nil
}

// UpdateQuantity sets the quantity of one cart line; a quantity of zero or
// less removes it. The id is the guest line id when signed out and the
// product id when signed in.
func (c *Coordinator) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if !c.authenticated() {
		c.guest.UpdateQuantity(ctx, c.resolveGuestLineID(id), quantity)
		c.metrics.IncSuccess("update_quantity", string(ModeGuest))
		return nil
	}

	cartID := c.session.Get()
	if cartID == "" {
		c.metrics.IncFailure("update_quantity", string(ModeAuthenticated))
		return pkgerrors.New(pkgerrors.CodeNoCartSession, "no active cart session")
	}

	defer c.track()()

	if err := c.backend.UpdateCartLine(ctx, cartID, id, quantity); err != nil {
		c.metrics.IncFailure("update_quantity", string(ModeAuthenticated))
		c.logger.Error(c.logger.WithCartID(ctx, cartID), "updating server cart line", err)
		return err
	}

	c.refreshMirror(ctx, "update_quantity")
	c.metrics.IncSuccess("update_quantity", string(ModeAuthenticated))
	return nil
}

// RemoveFromCart deletes one cart line. Same id semantics as UpdateQuantity.
func (c *Coordinator) RemoveFromCart(ctx context.Context, id string) error {
	if !c.authenticated() {
		c.guest.Remove(ctx, c.resolveGuestLineID(id))
		c.metrics.IncSuccess("remove", string(ModeGuest))
		return nil
	}

	cartID := c.session.Get()
	if cartID == "" {
		c.metrics.IncFailure("remove", string(ModeAuthenticated))
		return pkgerrors.New(pkgerrors.CodeNoCartSession, "no active cart session")
	}

	defer c.track()()

	if err := c.backend.RemoveCartLine(ctx, cartID, id); err != nil {
		c.metrics.IncFailure("remove", string(ModeAuthenticated))
		c.logger.Error(c.logger.WithCartID(ctx, cartID), "removing server cart line", err)
		return err
	}

	c.refreshMirror(ctx, "remove")
	c.metrics.IncSuccess("remove", string(ModeAuthenticated))
	return nil
}

// Refresh refetches the server cart into the mirror. Signed out it is a
// no-op: the guest store is already authoritative.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.authenticated() {
		return nil
	}

	defer c.track()()

	serverCart, err := c.backend.FetchCart(ctx)
	if err != nil {
		c.metrics.IncFailure("refresh", string(ModeAuthenticated))
		c.logger.Error(c.logger.WithOperation(ctx, "refresh"), "fetching server cart", err)
		return err
	}
	c.applyServerCart(ctx, serverCart)
	c.metrics.IncSuccess("refresh", string(ModeAuthenticated))
	return nil
}

func (c *Coordinator) authenticated() bool {
	return c.auth != nil && c.auth.IsAuthenticated()
}

func (c *Coordinator) track() func() {
	c.inFlight.Add(1)
	return func() { c.inFlight.Add(-1) }
}

// refreshMirror runs the post-mutation refetch. The mutation already
// succeeded, so a failed refetch only leaves the mirror one snapshot stale;
// it is logged, not surfaced.
func (c *Coordinator) refreshMirror(ctx context.Context, operation string) {
	serverCart, err := c.backend.FetchCart(ctx)
	if err != nil {
		c.logger.Warn(c.logger.WithOperation(ctx, operation), "mirror refresh after mutation failed")
		return
	}
	c.applyServerCart(ctx, serverCart)
}

func (c *Coordinator) applyServerCart(ctx context.Context, serverCart *backend.ServerCart) {
	if serverCart == nil {
		return
	}
	c.mirror.SetFromServer(serverCart.Lines)
	if serverCart.CartID != "" {
		c.session.Set(ctx, serverCart.CartID)
	}
}

// resolveGuestLineID maps an id the caller may have taken from either cart
// shape onto a guest line id. Exact line ids win; otherwise the first line
// for the product is used.
func (c *Coordinator) resolveGuestLineID(id string) string {
	lines := c.guest.Lines()
	for _, line := range lines {
		if line.LineID == id {
			return id
		}
	}
	for _, line := range lines {
		if line.ProductID == id {
			return line.LineID
		}
	}
	return id
}
