package backend

import (
	"context"

	"github.com/aromahaus/storefront-client/pkg/types"
)

// Credentials identifies a user by email or phone. OTP flows pick the phone
// endpoints when a phone number is present, email otherwise.
type Credentials struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
	OTP      string `json:"otp,omitempty"`
}

// AuthResult is a successful authentication: the bearer token plus the
// profile the backend resolved it to.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type verifyOTPRequest struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	OTP   string `json:"otp"`
}

// Login authenticates with a password or a previously verified OTP.
func (c *Client) Login(ctx context.Context, creds Credentials, password, otp string) (*AuthResult, error) {
	req := loginRequest{Email: creds.Email, Phone: creds.Phone, Password: password, OTP: otp}
	var result AuthResult
	if err := c.do(ctx, "login", "POST", "/user/login", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendOTP asks the backend to deliver a one-time code to the given identity.
func (c *Client) SendOTP(ctx context.Context, creds Credentials) error {
	path := "/user/send-email-otp"
	if creds.Phone != "" {
		path = "/user/send-otp"
	}
	return c.do(ctx, "send_otp", "POST", path, creds, nil)
}

// VerifyOTP exchanges a delivered code for an authenticated session.
func (c *Client) VerifyOTP(ctx context.Context, creds Credentials, otp string) (*AuthResult, error) {
	path := "/user/verify-email-otp"
	if creds.Phone != "" {
		path = "/user/verify-otp"
	}
	req := verifyOTPRequest{Email: creds.Email, Phone: creds.Phone, OTP: otp}
	var result AuthResult
	if err := c.do(ctx, "verify_otp", "POST", path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
