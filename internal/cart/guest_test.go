package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/kvstore"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func openTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(context.Background(), config.StorageConfig{Path: ":memory:"}, testLogger())
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGuestAddMergesSameVariant(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	input := LineInput{
		ProductID: "P1",
		Title:     "Eau de Parfum",
		UnitPrice: decimal.NewFromInt(899),
		Quantity:  1,
		Size:      "50ML",
	}

	if _, err := guest.Add(ctx, input); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := guest.Add(ctx, input); err != nil {
		t.Fatalf("second add: %v", err)
	}

	lines := guest.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", lines[0].Quantity)
	}
	if !lines[0].Total.Equal(decimal.NewFromInt(1798)) {
		t.Fatalf("expected line total 1798, got %s", lines[0].Total)
	}
}

func TestGuestAddDistinctSizesStaySeparate(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	base := LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1}

	small := base
	small.Size = "50ML"
	large := base
	large.Size = "100ML"

	if _, err := guest.Add(ctx, small); err != nil {
		t.Fatalf("add small: %v", err)
	}
	if _, err := guest.Add(ctx, large); err != nil {
		t.Fatalf("add large: %v", err)
	}

	if got := len(guest.Lines()); got != 2 {
		t.Fatalf("expected two lines for distinct sizes, got %d", got)
	}
}

func TestGuestAddClampsQuantityAndRejectsNegativePrice(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	line, err := guest.Add(ctx, LineInput{
		ProductID: "P1",
		Title:     "Eau de Parfum",
		UnitPrice: decimal.NewFromInt(899),
		Quantity:  0,
	})
	if err != nil {
		t.Fatalf("add with zero quantity: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", line.Quantity)
	}

	_, err = guest.Add(ctx, LineInput{
		ProductID: "P2",
		Title:     "Body Mist",
		UnitPrice: decimal.NewFromInt(-5),
		Quantity:  1,
	})
	if err == nil {
		t.Fatalf("expected negative price to be rejected")
	}
}

func TestGuestUpdateQuantityZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	line, err := guest.Add(ctx, LineInput{
		ProductID: "P1",
		Title:     "Eau de Parfum",
		UnitPrice: decimal.NewFromInt(899),
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	guest.UpdateQuantity(ctx, line.LineID, 0)
	if got := len(guest.Lines()); got != 0 {
		t.Fatalf("expected empty cart after zero-quantity update, got %d lines", got)
	}

	// Unknown ids must be a no-op, not a panic.
	guest.UpdateQuantity(ctx, "missing", 3)
}

func TestGuestUpdateQuantityRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	line, err := guest.Add(ctx, LineInput{
		ProductID: "P1",
		Title:     "Eau de Parfum",
		UnitPrice: decimal.NewFromInt(899),
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	guest.UpdateQuantity(ctx, line.LineID, 3)

	lines := guest.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %+v", lines)
	}
	if !lines[0].Total.Equal(decimal.NewFromInt(2697)) {
		t.Fatalf("expected total 2697, got %s", lines[0].Total)
	}
}

func TestGuestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	guest.Clear(ctx)
	if got := len(guest.Lines()); got != 0 {
		t.Fatalf("clear on empty cart should stay empty, got %d lines", got)
	}

	if _, err := guest.Add(ctx, LineInput{ProductID: "P1", Title: "Eau de Parfum", UnitPrice: decimal.NewFromInt(899), Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	guest.Clear(ctx)
	guest.Clear(ctx)
	if got := len(guest.Lines()); got != 0 {
		t.Fatalf("expected empty cart after double clear, got %d lines", got)
	}
}

func TestGuestCartSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	guest := NewGuestStore(ctx, store, testLogger())
	if _, err := guest.Add(ctx, LineInput{
		ProductID: "P1",
		Title:     "Eau de Parfum",
		UnitPrice: decimal.NewFromInt(899),
		Quantity:  2,
		Size:      "50ML",
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	rehydrated := NewGuestStore(ctx, store, testLogger())
	lines := rehydrated.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one persisted line, got %d", len(lines))
	}
	if lines[0].ProductID != "P1" || lines[0].Quantity != 2 || lines[0].Size != "50ML" {
		t.Fatalf("unexpected rehydrated line %+v", lines[0])
	}
}

func TestGuestTotalsAndItemCount(t *testing.T) {
	ctx := context.Background()
	guest := NewGuestStore(ctx, nil, testLogger())

	if _, err := guest.Add(ctx, LineInput{ProductID: "P1", Title: "A", UnitPrice: decimal.NewFromInt(100), Quantity: 2}); err != nil {
		t.Fatalf("add P1: %v", err)
	}
	if _, err := guest.Add(ctx, LineInput{ProductID: "P2", Title: "B", UnitPrice: decimal.NewFromInt(50), Quantity: 3}); err != nil {
		t.Fatalf("add P2: %v", err)
	}

	if got := guest.ItemCount(); got != 5 {
		t.Fatalf("expected 5 items, got %d", got)
	}
	if !guest.Total().Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected total 350, got %s", guest.Total())
	}
}

func TestMirrorSetFromServerReplacesWholesale(t *testing.T) {
	mirror := NewMirror()
	mirror.SetFromServer([]types.CartLine{
		{LineID: "l1", ProductID: "P1", UnitPrice: decimal.NewFromInt(899), Quantity: 1, Total: decimal.NewFromInt(899)},
	})
	mirror.SetFromServer([]types.CartLine{
		{LineID: "l2", ProductID: "P2", UnitPrice: decimal.NewFromInt(50), Quantity: 2, Total: decimal.NewFromInt(100)},
	})

	lines := mirror.Lines()
	if len(lines) != 1 || lines[0].ProductID != "P2" {
		t.Fatalf("expected wholesale replacement, got %+v", lines)
	}
	if mirror.ItemCount() != 2 {
		t.Fatalf("expected item count 2, got %d", mirror.ItemCount())
	}

	mirror.Clear()
	if len(mirror.Lines()) != 0 {
		t.Fatalf("expected empty mirror after clear")
	}
}

func TestSessionPointerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	pointer := NewSessionPointer(ctx, store, testLogger())
	pointer.Set(ctx, "c1")

	rehydrated := NewSessionPointer(ctx, store, testLogger())
	if got := rehydrated.Get(); got != "c1" {
		t.Fatalf("expected rehydrated pointer c1, got %q", got)
	}

	rehydrated.Clear(ctx)
	again := NewSessionPointer(ctx, store, testLogger())
	if got := again.Get(); got != "" {
		t.Fatalf("expected cleared pointer, got %q", got)
	}
}
