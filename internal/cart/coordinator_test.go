package cart

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/backend"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/types"
)

type fakeAuthState struct {
	authenticated bool
}

func (f *fakeAuthState) IsAuthenticated() bool { return f.authenticated }

type fakeBackend struct {
	serverCart  *backend.ServerCart
	fetchErr    error
	addCartID   string
	addErr      error
	updateErr   error
	removeErr   error
	addCalls    int
	updateCalls int
	removeCalls int
	fetchCalls  int
	release     chan struct{}
}

func (f *fakeBackend) FetchCart(ctx context.Context) (*backend.ServerCart, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.serverCart == nil {
		return &backend.ServerCart{}, nil
	}
	return f.serverCart, nil
}

func (f *fakeBackend) AddToCart(ctx context.Context, line types.CartLine) (string, error) {
	f.addCalls++
	if f.release != nil {
		<-f.release
	}
	if f.addErr != nil {
		return "", f.addErr
	}
	return f.addCartID, nil
}

func (f *fakeBackend) UpdateCartLine(ctx context.Context, cartID, productID string, quantity int) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeBackend) RemoveCartLine(ctx context.Context, cartID, productID string) error {
	f.removeCalls++
	return f.removeErr
}

func newTestCoordinator(t *testing.T, auth *fakeAuthState, remote *fakeBackend) (*Coordinator, *GuestStore, *Mirror, *SessionPointer) {
	t.Helper()
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())
	mirror := NewMirror()
	session := NewSessionPointer(ctx, nil, testLogger())

	coordinator := NewCoordinator(CoordinatorParams{
		Guest:   guest,
		Mirror:  mirror,
		Session: session,
		Auth:    auth,
		Backend: remote,
		Logger:  testLogger(),
	})
	return coordinator, guest, mirror, session
}

func TestCurrentCartRoutesByAuthState(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuthState{}
	coordinator, guest, mirror, _ := newTestCoordinator(t, auth, &fakeBackend{})

	if _, err := guest.Add(ctx, LineInput{ProductID: "G1", Title: "Guest Item", UnitPrice: decimal.NewFromInt(10), Quantity: 1}); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	mirror.SetFromServer([]types.CartLine{
		{LineID: "s1", ProductID: "S1", UnitPrice: decimal.NewFromInt(20), Quantity: 1, Total: decimal.NewFromInt(20)},
	})

	view := coordinator.CurrentCart()
	if view.Mode != ModeGuest {
		t.Fatalf("expected guest mode, got %s", view.Mode)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != "G1" {
		t.Fatalf("guest view must only contain guest lines, got %+v", view.Lines)
	}

	auth.authenticated = true
	view = coordinator.CurrentCart()
	if view.Mode != ModeAuthenticated {
		t.Fatalf("expected authenticated mode, got %s", view.Mode)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != "S1" {
		t.Fatalf("authenticated view must only contain mirror lines, got %+v", view.Lines)
	}
}

func TestAuthenticatedUpdateWithoutSessionFails(t *testing.T) {
	ctx := context.Background()
	remote := &fakeBackend{}
	coordinator, _, mirror, _ := newTestCoordinator(t, &fakeAuthState{authenticated: true}, remote)

	before := []types.CartLine{
		{LineID: "s1", ProductID: "P1", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
	}
	mirror.SetFromServer(before)

	err := coordinator.UpdateQuantity(ctx, "P1", 0)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNoCartSession) {
		t.Fatalf("expected NO_ACTIVE_CART_SESSION, got %v", err)
	}
	if remote.updateCalls != 0 {
		t.Fatalf("no remote call expected without a session pointer")
	}

	lines := mirror.Lines()
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("mirror must be unchanged on failure, got %+v", lines)
	}
}

func TestAuthenticatedAddRefreshesMirrorFromServer(t *testing.T) {
	ctx := context.Background()
	serverLines := []types.CartLine{
		{LineID: "s1", ProductID: "P1", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
	}
	remote := &fakeBackend{
		addCartID:  "c1",
		serverCart: &backend.ServerCart{CartID: "c1", Lines: serverLines},
	}
	coordinator, guest, mirror, session := newTestCoordinator(t, &fakeAuthState{authenticated: true}, remote)

	err := coordinator.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if remote.addCalls != 1 || remote.fetchCalls != 1 {
		t.Fatalf("expected mutate then refetch, got add=%d fetch=%d", remote.addCalls, remote.fetchCalls)
	}
	if got := session.Get(); got != "c1" {
		t.Fatalf("expected session pointer c1, got %q", got)
	}
	if lines := mirror.Lines(); len(lines) != 1 || lines[0].ProductID != "P1" {
		t.Fatalf("mirror should hold the server snapshot, got %+v", lines)
	}
	if len(guest.Lines()) != 0 {
		t.Fatalf("authenticated add must not touch the guest cart")
	}
}

func TestAuthenticatedAddFailureLeavesMirrorUntouched(t *testing.T) {
	ctx := context.Background()
	remote := &fakeBackend{addErr: errors.New("network down")}
	coordinator, _, mirror, _ := newTestCoordinator(t, &fakeAuthState{authenticated: true}, remote)

	before := []types.CartLine{
		{LineID: "s1", ProductID: "P9", UnitPrice: decimal.NewFromInt(100), Quantity: 2, Total: decimal.NewFromInt(200)},
	}
	mirror.SetFromServer(before)

	err := coordinator.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1})
	if err == nil {
		t.Fatalf("expected add failure to propagate")
	}
	if remote.fetchCalls != 0 {
		t.Fatalf("no refetch expected after failed mutation")
	}

	lines := mirror.Lines()
	if len(lines) != 1 || lines[0].ProductID != "P9" || lines[0].Quantity != 2 {
		t.Fatalf("mirror must be unchanged on failure, got %+v", lines)
	}
}

func TestAuthenticatedRemoveRequiresSession(t *testing.T) {
	ctx := context.Background()
	remote := &fakeBackend{}
	coordinator, _, _, session := newTestCoordinator(t, &fakeAuthState{authenticated: true}, remote)

	if err := coordinator.RemoveFromCart(ctx, "P1"); !pkgerrors.HasCode(err, pkgerrors.CodeNoCartSession) {
		t.Fatalf("expected NO_ACTIVE_CART_SESSION, got %v", err)
	}

	session.Set(ctx, "c1")
	if err := coordinator.RemoveFromCart(ctx, "P1"); err != nil {
		t.Fatalf("remove with session: %v", err)
	}
	if remote.removeCalls != 1 {
		t.Fatalf("expected one remote remove, got %d", remote.removeCalls)
	}
}

func TestGuestMutationsBypassBackend(t *testing.T) {
	ctx := context.Background()
	remote := &fakeBackend{}
	coordinator, guest, _, _ := newTestCoordinator(t, &fakeAuthState{}, remote)

	if err := coordinator.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1}); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	line := guest.Lines()[0]

	if err := coordinator.UpdateQuantity(ctx, line.LineID, 4); err != nil {
		t.Fatalf("guest update: %v", err)
	}
	if err := coordinator.RemoveFromCart(ctx, line.LineID); err != nil {
		t.Fatalf("guest remove: %v", err)
	}

	if remote.addCalls+remote.updateCalls+remote.removeCalls+remote.fetchCalls != 0 {
		t.Fatalf("guest operations must never reach the backend")
	}
	if coordinator.IsLoading() {
		t.Fatalf("guest operations never report loading")
	}
}

func TestGuestUpdateAcceptsProductID(t *testing.T) {
	ctx := context.Background()
	coordinator, guest, _, _ := newTestCoordinator(t, &fakeAuthState{}, &fakeBackend{})

	if err := coordinator.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1}); err != nil {
		t.Fatalf("guest add: %v", err)
	}

	if err := coordinator.UpdateQuantity(ctx, "P1", 3); err != nil {
		t.Fatalf("guest update by product id: %v", err)
	}
	if lines := guest.Lines(); len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %+v", lines)
	}
}

func TestIsLoadingDuringAuthenticatedMutation(t *testing.T) {
	ctx := context.Background()
	remote := &fakeBackend{
		addCartID:  "c1",
		serverCart: &backend.ServerCart{CartID: "c1"},
		release:    make(chan struct{}),
	}
	coordinator, _, _, _ := newTestCoordinator(t, &fakeAuthState{authenticated: true}, remote)

	done := make(chan error, 1)
	go func() {
		done <- coordinator.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1})
	}()

	for !coordinator.IsLoading() {
		runtime.Gosched()
	}

	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("add: %v", err)
	}
	if coordinator.IsLoading() {
		t.Fatalf("loading must drop once the operation completes")
	}
}
