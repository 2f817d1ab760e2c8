package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/checkout"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/session"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type LookupRequestDTO struct {
	PostalCode string `json:"postal_code"`
}

type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// GetView returns the current checkout view. A matching If-None-Match yields
// 304 so polling clients only download changes.
func (h *CheckoutHandler) GetView(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, nil)
}

func (h *CheckoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.Open() })
}

func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.Next() })
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.Back() })
}

func (h *CheckoutHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.Close() })
}

func (h *CheckoutHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var form domain.AddressForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.UpdateAddress(form) })
}

// LookupPostalCode starts a lookup and answers 202 at once; the result shows
// up in the view and the notifications.
func (h *CheckoutHandler) LookupPostalCode(w http.ResponseWriter, r *http.Request) {
	var req LookupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.command(w, r, http.StatusAccepted, func(f *checkout.Flow) error { return f.LookupPostalCode(req.PostalCode) })
}

func (h *CheckoutHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var sel domain.PaymentSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// the card number never travels through here
	sel.CardLast4 = ""
	h.command(w, r, http.StatusOK, func(f *checkout.Flow) error { return f.SelectPayment(sel) })
}

func (h *CheckoutHandler) SubmitCard(w http.ResponseWriter, r *http.Request) {
	var form domain.CardForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.command(w, r, http.StatusAccepted, func(f *checkout.Flow) error { return f.SubmitCard(form) })
}

func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	var receipt domain.Receipt
	err := s.Do(ctx, func() error {
		var err error
		receipt, err = s.Flow.Complete(ctx)
		return err
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

func (h *CheckoutHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}
	respondJSON(w, http.StatusOK, NotificationsResponse{Notifications: s.Inbox.Drain()})
}

// command runs fn on the session loop and answers with the resulting view.
// A nil fn only reads the view.
func (h *CheckoutHandler) command(w http.ResponseWriter, r *http.Request, status int, fn func(*checkout.Flow) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		handleError(w, r, errNoSession)
		return
	}

	var (
		body []byte
		etag string
	)
	err := s.Do(ctx, func() error {
		if fn != nil {
			if err := fn(s.Flow); err != nil {
				return err
			}
		}
		body, etag = s.Views.Record(s.Flow.View())
		return nil
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeView(w, r, status, body, etag)
}

func writeView(w http.ResponseWriter, r *http.Request, status int, body []byte, etag string) {
	if body == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to render checkout")
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodGet && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

var _ SessionStore = (*session.Manager)(nil)
