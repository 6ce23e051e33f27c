package types

import "time"

// UserAddress is one saved shipping/billing address.
type UserAddress struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Street string `json:"street"`
	City   string `json:"city"`
	Zip    string `json:"zip"`
}

// User is the backend-owned profile mirrored on the client.
type User struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"firstName,omitempty"`
	LastName    string        `json:"lastName,omitempty"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone"`
	Gender      string        `json:"gender,omitempty"`
	DateOfBirth string        `json:"dateOfBirth,omitempty"`
	Addresses   []UserAddress `json:"addresses,omitempty"`
	Role        string        `json:"role,omitempty"`
	CreatedAt   time.Time     `json:"createdAt,omitzero"`
	UpdatedAt   time.Time     `json:"updatedAt,omitzero"`
}
