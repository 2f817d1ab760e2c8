package checkout

import (
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/summary"
	"github.com/shopspring/decimal"
)

// View is the snapshot the rendering collaborator draws from.
type View struct {
	Open      bool                `json:"open"`
	Step      domain.CheckoutStep `json:"step"`
	StepIndex int                 `json:"step_index"`

	Lines      []domain.CartLine `json:"lines"`
	ItemCount  int               `json:"item_count"`
	Total      decimal.Decimal   `json:"total"`
	TotalLabel string            `json:"total_label"`

	Address          domain.AddressForm `json:"address"`
	AddressConfirmed bool               `json:"address_confirmed"`
	LookupInFlight   bool               `json:"lookup_in_flight"`

	SelectedMethod domain.PaymentMethod     `json:"selected_method,omitempty"`
	Payment        *domain.PaymentSelection `json:"payment,omitempty"`
	PaymentLabel   string                   `json:"payment_label,omitempty"`
	PaymentPending bool                     `json:"payment_pending"`
	AwaitingCard   bool                     `json:"awaiting_card"`

	QRCode    *domain.QRCode `json:"qr_code,omitempty"`
	QRMessage string         `json:"qr_message,omitempty"`

	Summary string `json:"summary,omitempty"`
}

// View returns the current snapshot.
func (f *Flow) View() View {
	lines := f.cart.Lines()
	total := f.cart.Total()

	v := View{
		Open:             f.open,
		Step:             f.step,
		StepIndex:        f.step.Index(),
		Lines:            lines,
		ItemCount:        f.cart.ItemCount(),
		Total:            total,
		TotalLabel:       domain.FormatCurrency(total),
		Address:          f.draft,
		AddressConfirmed: f.addressConfirmed,
		LookupInFlight:   f.lookingUp,
		SelectedMethod:   f.choice,
		PaymentPending:   f.pending != nil,
		AwaitingCard:     f.awaitingCard,
		QRMessage:        f.qrMessage,
	}
	if f.payment != nil {
		p := *f.payment
		v.Payment = &p
		v.PaymentLabel = summary.PaymentLabel(p)
	}
	if f.qr != nil {
		qr := *f.qr
		v.QRCode = &qr
	}
	if f.step == domain.CheckoutStepConfirmation && f.payment != nil {
		v.Summary = summary.Build(lines, f.address, *f.payment)
	}
	return v
}
