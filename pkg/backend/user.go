package backend

import (
	"context"

	"github.com/aromahaus/storefront-client/pkg/types"
)

// UserUpdate carries the mutable profile fields. Zero-valued fields are
// omitted so the backend treats them as unchanged.
type UserUpdate struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

// CurrentUser fetches the profile behind the active token.
func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, "current_user", "GET", "/user/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial profile update and returns the new profile.
func (c *Client) UpdateUser(ctx context.Context, update UserUpdate) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, "update_user", "POST", "/user/update-user", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
