// Package devstub is an in-memory rendition of the storefront backend used
// for local development and integration tests. It implements the same wire
// surface the production backend exposes, with a fixed OTP and no real
// delivery channels.
package devstub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/types"
)

type userIDKey struct{}

type handlers struct {
	store  *memoryStore
	minter *tokenMinter
	logger *logger.Logger
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type cartPayload struct {
	CartID         string           `json:"cartId"`
	ProductDetails []types.CartLine `json:"productDetails"`
}

func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	return nil
}

func (h *handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		subject, err := h.minter.subjectOf(token)
		if err != nil {
			writeError(r.Context(), h.logger, w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, subject)
		if h.logger != nil {
			ctx = h.logger.WithUserID(ctx, subject)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	if req.Email == "" && req.Phone == "" {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "email or phone is required"))
		return
	}

	key := req.Email
	if key == "" {
		key = req.Phone
	}
	switch {
	case req.OTP != "":
		if !h.store.consumeOTP(key, req.OTP) {
			writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid otp"))
			return
		}
	case req.Password != "":
		// Any non-empty password signs in; there is no real credential store.
	default:
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "password or otp is required"))
		return
	}

	h.issueSession(w, r, req.Email, req.Phone)
}

func (h *handlers) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	key := req.Email
	if key == "" {
		key = req.Phone
	}
	if key == "" {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "email or phone is required"))
		return
	}

	code := h.store.issueOTP(key)
	if h.logger != nil {
		ctx := h.logger.WithFields(r.Context(), map[string]any{"identity": key, "otp": code})
		h.logger.Info(ctx, "otp issued")
	}
	writeSuccess(w, map[string]string{"status": "sent"})
}

func (h *handlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	key := req.Email
	if key == "" {
		key = req.Phone
	}
	if key == "" || req.OTP == "" {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "identity and otp are required"))
		return
	}
	if !h.store.consumeOTP(key, req.OTP) {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid otp"))
		return
	}

	h.issueSession(w, r, req.Email, req.Phone)
}

func (h *handlers) issueSession(w http.ResponseWriter, r *http.Request, email, phone string) {
	user := h.store.upsertUser(email, phone)
	token, err := h.minter.mint(user.ID)
	if err != nil {
		writeError(r.Context(), h.logger, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
		return
	}
	writeRaw(w, authResponse{Token: token, User: *user})
}

func (h *handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	user := h.store.userByID(userIDFrom(r.Context()))
	if user == nil {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "user not found"))
		return
	}
	writeRaw(w, user)
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Gender      string `json:"gender"`
		DateOfBirth string `json:"dateOfBirth"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	user := h.store.updateUser(userIDFrom(r.Context()), func(u *types.User) {
		if req.FirstName != "" {
			u.FirstName = req.FirstName
		}
		if req.LastName != "" {
			u.LastName = req.LastName
		}
		if req.Email != "" {
			u.Email = req.Email
		}
		if req.Phone != "" {
			u.Phone = req.Phone
		}
		if req.Gender != "" {
			u.Gender = req.Gender
		}
		if req.DateOfBirth != "" {
			u.DateOfBirth = req.DateOfBirth
		}
	})
	if user == nil {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "user not found"))
		return
	}
	writeRaw(w, user)
}

func (h *handlers) fetchCart(w http.ResponseWriter, r *http.Request) {
	cart := h.store.cartOf(userIDFrom(r.Context()))
	var payload struct {
		Carts *cartPayload `json:"carts"`
	}
	if cart != nil {
		payload.Carts = &cartPayload{CartID: cart.cartID, ProductDetails: cart.lines}
	}
	writeRaw(w, payload)
}

func (h *handlers) addToCart(w http.ResponseWriter, r *http.Request) {
	var line types.CartLine
	if err := decodeBody(r, &line); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	if line.ProductID == "" {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeValidation, "productId is required"))
		return
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	cartID := h.store.addLine(userIDFrom(r.Context()), line)
	writeSuccess(w, map[string]string{"cartId": cartID})
}

func (h *handlers) updateCartLine(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	if !h.store.updateLine(userIDFrom(r.Context()), cartID, req.ProductID, req.Quantity) {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found"))
		return
	}
	writeSuccess(w, map[string]string{"status": "updated"})
}

func (h *handlers) removeCartLine(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	productID := chi.URLParam(r, "productID")

	if !h.store.removeLine(userIDFrom(r.Context()), cartID, productID) {
		writeError(r.Context(), h.logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found"))
		return
	}
	writeSuccess(w, map[string]string{"status": "removed"})
}

func (h *handlers) transferCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuestCart []types.CartLine `json:"guestCart"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	cart := h.store.transfer(userIDFrom(r.Context()), req.GuestCart)
	writeSuccess(w, cartPayload{CartID: cart.cartID, ProductDetails: cart.lines})
}
