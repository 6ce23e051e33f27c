package backend

import (
	"context"
	"net/url"

	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/types"
)

// ServerCart is the backend-owned cart snapshot returned by reads and by the
// guest transfer.
type ServerCart struct {
	CartID string           `json:"cartId"`
	Lines  []types.CartLine `json:"productDetails"`
}

type fetchCartResponse struct {
	Carts *ServerCart `json:"carts"`
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type cartIDEnvelope struct {
	Data struct {
		CartID string `json:"cartId"`
	} `json:"data"`
}

type updateCartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type transferCartRequest struct {
	GuestCart []types.CartLine `json:"guestCart"`
}

type transferCartResponse struct {
	Data *ServerCart `json:"data"`
}

// FetchCart reads the caller's server cart. A user without a cart yet gets an
// empty snapshot with no cart id, not an error.
func (c *Client) FetchCart(ctx context.Context) (*ServerCart, error) {
	var resp fetchCartResponse
	if err := c.do(ctx, "fetch_cart", "GET", "/cart", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Carts == nil {
		return &ServerCart{}, nil
	}
	return resp.Carts, nil
}

// AddToCart adds one line to the server cart and returns the cart id the
// backend filed it under.
func (c *Client) AddToCart(ctx context.Context, line types.CartLine) (string, error) {
	req := addToCartRequest{
		ProductID: line.ProductID,
		Title:     line.Title,
		Price:     line.UnitPrice.String(),
		Quantity:  line.Quantity,
		Size:      line.Size,
		Color:     line.Color,
		ImageURL:  line.ImageURL,
	}
	var resp cartIDEnvelope
	if err := c.do(ctx, "add_to_cart", "POST", "/cart/add-to-cart", req, &resp); err != nil {
		return "", err
	}
	return resp.Data.CartID, nil
}

// UpdateCartLine sets the quantity of one product in the given server cart.
func (c *Client) UpdateCartLine(ctx context.Context, cartID, productID string, quantity int) error {
	if cartID == "" {
		return pkgerrors.New(pkgerrors.CodeNoCartSession, "no server cart to update")
	}
	req := updateCartLineRequest{ProductID: productID, Quantity: quantity}
	return c.do(ctx, "update_cart_line", "PATCH", "/cart/update-cart/"+url.PathEscape(cartID), req, nil)
}

// RemoveCartLine removes one product from the given server cart.
func (c *Client) RemoveCartLine(ctx context.Context, cartID, productID string) error {
	if cartID == "" {
		return pkgerrors.New(pkgerrors.CodeNoCartSession, "no server cart to remove from")
	}
	path := "/cart/" + url.PathEscape(cartID) + "/" + url.PathEscape(productID)
	return c.do(ctx, "remove_cart_line", "DELETE", path, nil, nil)
}

// TransferGuestCart hands the accumulated guest lines to the backend for a
// server-side merge. An empty guest cart is a no-op and returns nil, nil.
func (c *Client) TransferGuestCart(ctx context.Context, guestLines []types.CartLine) (*ServerCart, error) {
	if len(guestLines) == 0 {
		return nil, nil
	}
	var resp transferCartResponse
	if err := c.do(ctx, "transfer_cart", "POST", "/cart/transfer-cart", transferCartRequest{GuestCart: guestLines}, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransfer, err, "transfer guest cart")
	}
	if resp.Data == nil || resp.Data.CartID == "" {
		return nil, nil
	}
	return resp.Data, nil
}
