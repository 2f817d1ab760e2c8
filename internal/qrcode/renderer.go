// Package qrcode builds references to QR images rendered by a QR-server
// style endpoint. No request is made here, the browser loads the image.
package qrcode

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
)

const (
	DefaultBaseURL = "https://api.qrserver.com/v1/create-qr-code/"
	DefaultSize    = 200

	// maxPayload keeps the image URL within what the endpoint accepts.
	maxPayload = 900
	minSize    = 10
	maxSize    = 1000
)

var (
	ErrEmptyPayload    = errors.New("qr payload is empty")
	ErrPayloadTooLarge = errors.New("qr payload too large")
	ErrInvalidSize     = errors.New("qr size out of range")
)

type URLRenderer struct {
	base *url.URL
}

func NewURLRenderer(baseURL string) (*URLRenderer, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse qr base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("qr base url %q must be absolute", baseURL)
	}
	return &URLRenderer{base: u}, nil
}

// Render returns a reference to a size x size image encoding payload.
func (r *URLRenderer) Render(payload string, size int) (domain.QRCode, error) {
	switch {
	case payload == "":
		return domain.QRCode{}, ErrEmptyPayload
	case len(payload) > maxPayload:
		return domain.QRCode{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	case size < minSize || size > maxSize:
		return domain.QRCode{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	u := *r.base
	q := u.Query()
	q.Set("size", fmt.Sprintf("%dx%d", size, size))
	q.Set("data", payload)
	u.RawQuery = q.Encode()

	return domain.QRCode{
		Payload:  payload,
		ImageURL: u.String(),
		Size:     size,
	}, nil
}
