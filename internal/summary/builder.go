// Package summary renders the order summary shown on the confirmation step
// and encoded into the QR payload.
package summary

import (
	"fmt"
	"strings"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/shopspring/decimal"
)

const header = "Resumo do Pedido"

// Build renders lines, address and payment as plain text. The output depends
// only on its arguments.
func Build(lines []domain.CartLine, address domain.AddressForm, payment domain.PaymentSelection) string {
	var b strings.Builder

	b.WriteString(header)
	b.WriteString("\n\n")

	writeAddress(&b, address)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Pagamento: %s\n\n", PaymentLabel(payment))

	b.WriteString("Itens:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%d × %s @ %s\n", l.Quantity, l.ProductName, domain.FormatAmount(l.UnitPrice))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Quantidade de itens: %d\n", domain.LinesItemCount(lines))
	fmt.Fprintf(&b, "Total: %s", domain.FormatCurrency(domain.LinesTotal(lines)))

	return b.String()
}

func writeAddress(b *strings.Builder, a domain.AddressForm) {
	b.WriteString("Entrega:\n")

	street := a.Street
	if a.Number != "" {
		street += ", " + a.Number
	}
	if a.Complement != "" {
		street += " - " + a.Complement
	}
	fmt.Fprintf(b, "%s\n", street)
	fmt.Fprintf(b, "%s - %s/%s\n", a.Neighborhood, a.City, a.RegionCode)
	fmt.Fprintf(b, "CEP %s\n", a.FormattedPostalCode())
}

// PaymentLabel is the customer-facing name of the selected payment.
func PaymentLabel(p domain.PaymentSelection) string {
	switch p.Method {
	case domain.PaymentMethodPix:
		return "Pix"
	case domain.PaymentMethodCard:
		label := "Cartão de crédito"
		if p.CardType == domain.CardTypeDebit {
			label = "Cartão de débito"
		}
		if p.CardLast4 != "" {
			label += " (final " + p.CardLast4 + ")"
		}
		return label
	case domain.PaymentMethodCash:
		if p.ChangeFor != nil {
			return "Dinheiro - troco para " + domain.FormatCurrency(*p.ChangeFor)
		}
		return "Dinheiro"
	default:
		return "não selecionado"
	}
}

// PixPayload is the short text encoded in the Pix QR code.
func PixPayload(pixKey string, total decimal.Decimal) string {
	return fmt.Sprintf("Pix para %s\nValor: %s", pixKey, domain.FormatCurrency(total))
}
