// Package cart holds the client-side cart state machine: the guest store for
// unauthenticated sessions, the server cart mirror, the persisted session
// pointer, and the coordinator that routes operations between them.
package cart

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/types"
)

var validate = validator.New()

// LineInput is what a caller supplies when adding a product to the cart.
// Title, price, and image are display snapshots taken at add time.
type LineInput struct {
	ProductID string          `validate:"required"`
	Title     string          `validate:"required"`
	UnitPrice decimal.Decimal `validate:"-"`
	Quantity  int             `validate:"-"`
	Size      string          `validate:"-"`
	Color     string          `validate:"-"`
	ImageURL  string          `validate:"omitempty,url"`
}

// sanitize validates the input and returns a normalized cart line. Quantities
// below one clamp to one; a negative unit price is a caller bug and is
// rejected outright.
func (in LineInput) sanitize() (types.CartLine, error) {
	if err := validate.Struct(in); err != nil {
		return types.CartLine{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart line")
	}
	if in.UnitPrice.IsNegative() {
		return types.CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}

	line := types.CartLine{
		ProductID: in.ProductID,
		Title:     in.Title,
		UnitPrice: in.UnitPrice,
		Quantity:  quantity,
		Size:      in.Size,
		Color:     in.Color,
		ImageURL:  in.ImageURL,
	}
	line.Recompute()
	return line, nil
}

func sumLines(lines []types.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total)
	}
	return total
}

func countItems(lines []types.CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

func copyLines(lines []types.CartLine) []types.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]types.CartLine, len(lines))
	copy(out, lines)
	return out
}
