// Package cache keeps session carts in redis.
package cache

import (
	"fmt"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
)

// ErrCacheMiss matches cart.ErrNoSavedCart so the store treats it as an
// empty cart.
var ErrCacheMiss = fmt.Errorf("cache miss: %w", cart.ErrNoSavedCart)

// savedCart is the JSON value stored per session.
type savedCart struct {
	SessionID string            `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	SavedAt   time.Time         `json:"saved_at"`
}
