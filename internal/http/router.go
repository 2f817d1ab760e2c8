package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions       SessionStore
	Catalog        Catalog
	Logger         *zap.Logger
	RateLimiter    *RateLimiter
	RequestTimeout time.Duration
	MaxRequestBody int64
}

// NewRouter builds the storefront API.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	products := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	carts := NewCartHandler(cfg.Catalog, cfg.RequestTimeout)
	checkouts := NewCheckoutHandler(cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger.Named("http")))
	r.Use(middleware.Recoverer)
	if cfg.MaxRequestBody > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBody))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", products.List)
		r.Get("/products/{id}", products.Get)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Sessions))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Delete("/", carts.ClearCart)
				r.Post("/items", carts.AddItem)
				r.Patch("/items/{name}", carts.AdjustQuantity)
				r.Delete("/items/{name}", carts.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkouts.GetView)
				r.Post("/open", checkouts.Open)
				r.Post("/next", checkouts.Next)
				r.Post("/back", checkouts.Back)
				r.Post("/close", checkouts.Close)
				r.Post("/complete", checkouts.Complete)
				r.Put("/address", checkouts.UpdateAddress)
				r.Post("/address/lookup", checkouts.LookupPostalCode)
				r.Post("/payment", checkouts.SelectPayment)
				r.Post("/payment/card", checkouts.SubmitCard)
			})

			r.Get("/notifications", checkouts.Notifications)
		})
	})

	return r
}
