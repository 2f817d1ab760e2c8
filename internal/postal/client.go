// Package postal looks up Brazilian postal codes (CEP) on a ViaCEP-style
// JSON endpoint.
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const codeLength = 8

// viaCEPResponse mirrors the lookup endpoint. Unknown codes come back with
// status 200 and "erro" set.
type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       any    `json:"erro,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[domain.PostalAddress]
	sfg        singleflight.Group // concurrent lookups of one code share a request
	logger     *zap.Logger
}

// NewClient builds a client for baseURL, e.g. "https://viacep.com.br/ws".
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("postal")

	settings := gobreaker.Settings{
		Name:        "postal-lookup",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a code that does not exist is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedInput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:     gobreaker.NewCircuitBreaker[domain.PostalAddress](settings),
		logger: logger,
	}
}

// Lookup resolves an 8-digit postal code. Formatting characters such as the
// dash in 01001-000 are ignored.
func (c *Client) Lookup(ctx context.Context, code string) (domain.PostalAddress, error) {
	digits := domain.DigitsOnly(code)
	if len(digits) != codeLength {
		return domain.PostalAddress{}, fmt.Errorf("%w: %q", ErrMalformedInput, code)
	}

	v, err, _ := c.sfg.Do(digits, func() (interface{}, error) {
		return c.cb.Execute(func() (domain.PostalAddress, error) {
			return c.fetch(ctx, digits)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.PostalAddress{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return domain.PostalAddress{}, err
	}
	return v.(domain.PostalAddress), nil
}

func (c *Client) fetch(ctx context.Context, digits string) (domain.PostalAddress, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PostalAddress{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("postal lookup request failed", zap.String("postal_code", digits), zap.Error(err))
		return domain.PostalAddress{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return domain.PostalAddress{}, fmt.Errorf("%w: %s", ErrMalformedInput, digits)
	case resp.StatusCode == http.StatusNotFound:
		return domain.PostalAddress{}, fmt.Errorf("%w: %s", ErrNotFound, digits)
	case resp.StatusCode != http.StatusOK:
		return domain.PostalAddress{}, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PostalAddress{}, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	if isErrorFlag(body.Erro) {
		return domain.PostalAddress{}, fmt.Errorf("%w: %s", ErrNotFound, digits)
	}

	return domain.PostalAddress{
		Street:       body.Logradouro,
		Neighborhood: body.Bairro,
		City:         body.Localidade,
		RegionCode:   strings.ToUpper(body.UF),
	}, nil
}

// isErrorFlag accepts both true and "true", the endpoint has sent either.
func isErrorFlag(v any) bool {
	switch e := v.(type) {
	case bool:
		return e
	case string:
		return e == "true"
	default:
		return false
	}
}
