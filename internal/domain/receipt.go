package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt represents a finished order at the moment checkout completed.
type Receipt struct {
	OrderID     string           `json:"order_id"`
	SessionID   string           `json:"session_id"`
	Lines       []CartLine       `json:"lines"`
	Address     AddressForm      `json:"address"`
	Payment     PaymentSelection `json:"payment"`
	ItemCount   int              `json:"item_count"`
	Total       decimal.Decimal  `json:"total"`
	Summary     string           `json:"summary"`
	CompletedAt time.Time        `json:"completed_at"`
}
