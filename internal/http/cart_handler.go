package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/catalog"
	"github.com/juzeexs/lanches-bebidas/internal/checkout"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/postal"
	"github.com/juzeexs/lanches-bebidas/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewCartHandler(catalog Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

// AddItemRequestDTO adds either a catalog product by id, priced from the
// catalog, or a free-form name and price as typed by the client.
type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Price     string `json:"price,omitempty"`
}

type AdjustQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

type CartResponse struct {
	Lines      []domain.CartLine `json:"lines"`
	ItemCount  int               `json:"item_count"`
	Total      decimal.Decimal   `json:"total"`
	TotalLabel string            `json:"total_label"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func cartResponse(store *cart.Store) CartResponse {
	total := store.Total()
	return CartResponse{
		Lines:      store.Lines(),
		ItemCount:  store.ItemCount(),
		Total:      total,
		TotalLabel: domain.FormatCurrency(total),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	var resp CartResponse
	err := s.Do(ctx, func() error {
		resp = cartResponse(s.Cart)
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// catalog lookup happens outside the session loop
	var product *domain.Product
	if req.ProductID != 0 {
		if req.ProductID < 0 {
			respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
			return
		}
		p, err := h.catalog.Get(ctx, req.ProductID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		product = &p
	}

	var resp CartResponse
	err := s.Do(ctx, func() error {
		if product != nil {
			s.Cart.Add(product.Name, product.Price)
		} else if err := s.Cart.AddFromInput(req.Name, req.Price); err != nil {
			return err
		}
		resp = cartResponse(s.Cart)
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (h *CartHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	name, ok := itemName(w, r)
	if !ok {
		return
	}

	var req AdjustQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Delta == 0 || req.Delta < -cart.MaxLineQuantity || req.Delta > cart.MaxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_delta",
			fmt.Sprintf("delta must be non-zero and between -%d and %d", cart.MaxLineQuantity, cart.MaxLineQuantity))
		return
	}

	var resp CartResponse
	err := s.Do(ctx, func() error {
		if err := s.Cart.AdjustQuantity(name, req.Delta); err != nil {
			return err
		}
		resp = cartResponse(s.Cart)
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	name, ok := itemName(w, r)
	if !ok {
		return
	}

	var resp CartResponse
	err := s.Do(ctx, func() error {
		s.Cart.Remove(name)
		resp = cartResponse(s.Cart)
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	var resp CartResponse
	err := s.Do(ctx, func() error {
		s.Cart.Clear()
		resp = cartResponse(s.Cart)
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func itemName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		respondError(w, http.StatusBadRequest, "invalid_item", "item name is required")
		return "", false
	}
	return name, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *checkout.ValidationError

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "validation_failed",
			Details: validation.Fields,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrInvalidStepTransition):
		respondError(w, http.StatusConflict, "invalid_step_transition", err.Error())
	case errors.Is(err, postal.ErrMalformedInput):
		respondError(w, http.StatusBadRequest, "invalid_postal_code", err.Error())
	case errors.Is(err, postal.ErrTransport):
		respondError(w, http.StatusServiceUnavailable, "lookup_unavailable", err.Error())
	case errors.Is(err, cart.ErrQuantityOutOfRange):
		respondError(w, http.StatusBadRequest, "invalid_delta", err.Error())
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid_item", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, session.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "invalid_session", err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		respondError(w, http.StatusServiceUnavailable, "session_closed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		zap.L().Error("unhandled request error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
