package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrCartNotFound matches cart.ErrNoSavedCart so a missing document restores
// as an empty cart.
var ErrCartNotFound = fmt.Errorf("cart not found: %w", cart.ErrNoSavedCart)

var ErrCorruptCart = errors.New("stored cart is corrupt")

// CartRepository is the mongo-backed cart slot.
type CartRepository interface {
	Get(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Set(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Delete(ctx context.Context, sessionID string) error
	CreateIndexes(ctx context.Context) error
}

// cartDocument keeps prices as strings: bson has no lossless home for a
// decimal.Decimal.
type cartDocument struct {
	SessionID string         `bson:"session_id"`
	Lines     []lineDocument `bson:"lines"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductName string `bson:"product_name"`
	UnitPrice   string `bson:"unit_price"`
	Quantity    int    `bson:"quantity"`
}

func toDocuments(lines []domain.CartLine) []lineDocument {
	docs := make([]lineDocument, len(lines))
	for i, l := range lines {
		docs[i] = lineDocument{
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.String(),
			Quantity:    l.Quantity,
		}
	}
	return docs
}

func fromDocuments(docs []lineDocument) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, len(docs))
	for i, d := range docs {
		price, err := decimal.NewFromString(d.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: line %q price %q", ErrCorruptCart, d.ProductName, d.UnitPrice)
		}
		lines[i] = domain.CartLine{
			ProductName: d.ProductName,
			UnitPrice:   price,
			Quantity:    d.Quantity,
		}
	}
	return lines, nil
}
