package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/internal/cart"
	"github.com/aromahaus/storefront-client/pkg/backend"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

type fakeAuthBackend struct {
	result        *backend.AuthResult
	loginErr      error
	sendOTPCalls  []backend.Credentials
	transferCart  *backend.ServerCart
	transferErr   error
	transferCalls int
	transferred   []types.CartLine
}

func (f *fakeAuthBackend) Login(ctx context.Context, creds backend.Credentials, password, otp string) (*backend.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result, nil
}

func (f *fakeAuthBackend) SendOTP(ctx context.Context, creds backend.Credentials) error {
	f.sendOTPCalls = append(f.sendOTPCalls, creds)
	return nil
}

func (f *fakeAuthBackend) VerifyOTP(ctx context.Context, creds backend.Credentials, otp string) (*backend.AuthResult, error) {
	return f.result, nil
}

func (f *fakeAuthBackend) TransferGuestCart(ctx context.Context, guestLines []types.CartLine) (*backend.ServerCart, error) {
	f.transferCalls++
	f.transferred = append([]types.CartLine(nil), guestLines...)
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return f.transferCart, nil
}

func newTestService(t *testing.T, remote *fakeAuthBackend) (Service, *Identity, *cart.GuestStore, *cart.Mirror, *cart.SessionPointer) {
	t.Helper()
	ctx := context.Background()

	identity := NewIdentity(ctx, nil, testLogger())
	guest := cart.NewGuestStore(ctx, nil, testLogger())
	mirror := cart.NewMirror()
	session := cart.NewSessionPointer(ctx, nil, testLogger())

	service := NewService(ServiceParams{
		Backend:  remote,
		Identity: identity,
		Guest:    guest,
		Mirror:   mirror,
		Session:  session,
		Logger:   testLogger(),
	})
	return service, identity, guest, mirror, session
}

func addGuestLines(t *testing.T, guest *cart.GuestStore, count int) {
	t.Helper()
	ctx := context.Background()
	products := []string{"P1", "P2", "P3"}
	for i := 0; i < count; i++ {
		if _, err := guest.Add(ctx, cart.LineInput{
			ProductID: products[i],
			Title:     "Product " + products[i],
			UnitPrice: decimal.NewFromInt(899),
			Quantity:  1,
			Size:      "50ML",
		}); err != nil {
			t.Fatalf("seeding guest cart: %v", err)
		}
	}
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestLoginTransfersGuestCart(t *testing.T) {
	ctx := context.Background()
	serverLines := []types.CartLine{
		{LineID: "s1", ProductID: "P1", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
		{LineID: "s2", ProductID: "P2", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
	}
	remote := &fakeAuthBackend{
		result: &backend.AuthResult{
			Token: signedToken(t, time.Hour),
			User:  types.User{ID: "u1", Email: "amber@example.com"},
		},
		transferCart: &backend.ServerCart{CartID: "c1", Lines: serverLines},
	}
	service, identity, guest, mirror, session := newTestService(t, remote)
	addGuestLines(t, guest, 2)

	user, err := service.Login(ctx, backend.Credentials{Email: "amber@example.com"}, "secret", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user %+v", user)
	}
	if !identity.IsAuthenticated() {
		t.Fatalf("identity should be authenticated after login")
	}

	if remote.transferCalls != 1 || len(remote.transferred) != 2 {
		t.Fatalf("expected one transfer with 2 lines, got calls=%d lines=%d", remote.transferCalls, len(remote.transferred))
	}
	if got := session.Get(); got != "c1" {
		t.Fatalf("expected session pointer c1, got %q", got)
	}
	if lines := mirror.Lines(); len(lines) != 2 {
		t.Fatalf("expected mirror to hold 2 transferred lines, got %d", len(lines))
	}
	if got := len(guest.Lines()); got != 0 {
		t.Fatalf("guest cart must be empty after login, got %d lines", got)
	}
}

func TestLoginTransferFailureStillClearsGuestCart(t *testing.T) {
	ctx := context.Background()
	remote := &fakeAuthBackend{
		result: &backend.AuthResult{
			Token: signedToken(t, time.Hour),
			User:  types.User{ID: "u1", Email: "amber@example.com"},
		},
		transferErr: errors.New("network down"),
	}
	service, identity, guest, mirror, session := newTestService(t, remote)
	addGuestLines(t, guest, 2)

	if _, err := service.Login(ctx, backend.Credentials{Email: "amber@example.com"}, "secret", ""); err != nil {
		t.Fatalf("transfer failure must not block login, got %v", err)
	}

	if !identity.IsAuthenticated() {
		t.Fatalf("login should complete despite transfer failure")
	}
	if got := len(guest.Lines()); got != 0 {
		t.Fatalf("guest cart must be cleared even when the transfer fails, got %d lines", got)
	}
	if got := len(mirror.Lines()); got != 0 {
		t.Fatalf("mirror must stay untouched on transfer failure, got %d lines", got)
	}
	if got := session.Get(); got != "" {
		t.Fatalf("no session pointer expected on transfer failure, got %q", got)
	}
}

func TestLoginWithEmptyGuestCartSkipsTransfer(t *testing.T) {
	ctx := context.Background()
	remote := &fakeAuthBackend{
		result: &backend.AuthResult{
			Token: signedToken(t, time.Hour),
			User:  types.User{ID: "u1", Email: "amber@example.com"},
		},
	}
	service, _, _, _, _ := newTestService(t, remote)

	if _, err := service.Login(ctx, backend.Credentials{Email: "amber@example.com"}, "secret", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if remote.transferCalls != 0 {
		t.Fatalf("empty guest cart must not trigger a transfer")
	}
}

func TestLogoutClearsMirrorAndSessionKeepsGuest(t *testing.T) {
	ctx := context.Background()
	remote := &fakeAuthBackend{
		result: &backend.AuthResult{
			Token: signedToken(t, time.Hour),
			User:  types.User{ID: "u1", Email: "amber@example.com"},
		},
	}
	service, identity, guest, mirror, session := newTestService(t, remote)

	if _, err := service.Login(ctx, backend.Credentials{Email: "amber@example.com"}, "secret", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	mirror.SetFromServer([]types.CartLine{
		{LineID: "s1", ProductID: "P1", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
	})
	session.Set(ctx, "c1")
	addGuestLines(t, guest, 1)

	if err := service.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if identity.IsAuthenticated() {
		t.Fatalf("identity must be cleared on logout")
	}
	if got := len(mirror.Lines()); got != 0 {
		t.Fatalf("mirror must be empty after logout, got %d lines", got)
	}
	if got := session.Get(); got != "" {
		t.Fatalf("session pointer must be absent after logout, got %q", got)
	}
	if got := len(guest.Lines()); got != 1 {
		t.Fatalf("guest cart must survive logout, got %d lines", got)
	}
}

func TestSendOTPDelegates(t *testing.T) {
	service, _, _, _, _ := newTestService(t, &fakeAuthBackend{})
	remoteCreds := backend.Credentials{Phone: "+15550100"}

	if err := service.SendOTP(context.Background(), remoteCreds); err != nil {
		t.Fatalf("send otp: %v", err)
	}
}
