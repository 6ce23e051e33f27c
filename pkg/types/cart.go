package types

import "github.com/shopspring/decimal"

// CartLine is one product/variant entry in a cart, shared between the local
// stores and the backend wire format. UnitPrice and Title are display
// snapshots taken at add time; Total is always derived from
// UnitPrice * Quantity and never mutated independently.
type CartLine struct {
	LineID    string          `json:"id"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

// Recompute refreshes the derived line total.
func (l *CartLine) Recompute() {
	l.Total = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SameVariant reports whether two lines refer to the same product variant.
// Lines for the same (product, size) pair merge rather than duplicate.
func (l CartLine) SameVariant(other CartLine) bool {
	return l.ProductID == other.ProductID && l.Size == other.Size
}
