package devstub

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

// NewRouter builds the stub backend's HTTP handler.
func NewRouter(cfg config.StubConfig, logg *logger.Logger) http.Handler {
	h := &handlers{
		store:  newMemoryStore(),
		minter: newTokenMinter(cfg),
		logger: logg,
	}

	r := chi.NewRouter()
	r.Use(
		recoverer(logg),
		requestID(logg),
		logging(logg),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/send-otp", h.sendOTP)
		r.Post("/send-email-otp", h.sendOTP)
		r.Post("/verify-otp", h.verifyOTP)
		r.Post("/verify-email-otp", h.verifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/me", h.currentUser)
			r.Post("/update-user", h.updateUser)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/", h.fetchCart)
		r.Post("/add-to-cart", h.addToCart)
		r.Patch("/update-cart/{cartID}", h.updateCartLine)
		r.Post("/transfer-cart", h.transferCart)
		r.Delete("/{cartID}/{productID}", h.removeCartLine)
	})

	return r
}
