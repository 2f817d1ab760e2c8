package repository

import (
	"testing"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocuments_KeepExactPrices(t *testing.T) {
	lines := []domain.CartLine{
		{ProductName: "Suco", UnitPrice: decimal.RequireFromString("8.333"), Quantity: 3},
	}

	docs := toDocuments(lines)
	assert.Equal(t, "8.333", docs[0].UnitPrice)

	back, err := fromDocuments(docs)
	require.NoError(t, err)
	assert.True(t, lines[0].UnitPrice.Equal(back[0].UnitPrice))
	assert.Equal(t, 3, back[0].Quantity)
}

func TestDocuments_CorruptPrice(t *testing.T) {
	_, err := fromDocuments([]lineDocument{{ProductName: "X", UnitPrice: "", Quantity: 1}})
	assert.ErrorIs(t, err, ErrCorruptCart)
}
