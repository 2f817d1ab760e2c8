package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/postal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler runs timers on virtual time. Posted tasks queue until
// RunPosted or Advance drains them.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
	posted []func()
}

type manualTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) Post(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = append(s.posted, fn)
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
	s.RunPosted()
}

func (s *manualScheduler) RunPosted() {
	for {
		s.mu.Lock()
		if len(s.posted) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.posted[0]
		s.posted = s.posted[1:]
		s.mu.Unlock()
		fn()
	}
}

func (s *manualScheduler) PostedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posted)
}

// lastTimer returns the callback of the most recent timer, ignoring whether
// it was stopped. It simulates a timer that fired just before being cancelled.
func (s *manualScheduler) lastTimer() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1].fn
}

type recordingNotifier struct {
	notes []domain.Notification
}

func (n *recordingNotifier) Notify(note domain.Notification) {
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) last() domain.Notification {
	if len(n.notes) == 0 {
		return domain.Notification{}
	}
	return n.notes[len(n.notes)-1]
}

type recordingRenderer struct {
	views []View
}

func (r *recordingRenderer) Render(v View) {
	r.views = append(r.views, v)
}

func (r *recordingRenderer) last() View {
	return r.views[len(r.views)-1]
}

type fakeQR struct {
	err      error
	payloads []string
}

func (q *fakeQR) Render(payload string, size int) (domain.QRCode, error) {
	if q.err != nil {
		return domain.QRCode{}, q.err
	}
	q.payloads = append(q.payloads, payload)
	return domain.QRCode{Payload: payload, ImageURL: "https://qr.test/img", Size: size}, nil
}

type fakeLookup struct {
	release chan struct{}
	result  domain.PostalAddress
	err     error
}

func (l *fakeLookup) Lookup(ctx context.Context, code string) (domain.PostalAddress, error) {
	if l.release != nil {
		<-l.release
	}
	return l.result, l.err
}

type fakePublisher struct {
	mu       sync.Mutex
	receipts []domain.Receipt
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, r domain.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, r)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.receipts)
}

type fixture struct {
	store     *cart.Store
	sched     *manualScheduler
	notifier  *recordingNotifier
	renderer  *recordingRenderer
	qr        *fakeQR
	lookup    *fakeLookup
	publisher *fakePublisher
	flow      *Flow
}

func setupFlow(t *testing.T) *fixture {
	fx := &fixture{
		store:     cart.NewStore(),
		sched:     &manualScheduler{},
		notifier:  &recordingNotifier{},
		renderer:  &recordingRenderer{},
		qr:        &fakeQR{},
		lookup:    &fakeLookup{},
		publisher: &fakePublisher{},
	}
	fx.flow = New(fx.store, fx.sched,
		WithNotifier(fx.notifier),
		WithRenderer(fx.renderer),
		WithQRRenderer(fx.qr),
		WithPostalLookup(fx.lookup, time.Second),
		WithReceiptPublisher(fx.publisher),
		WithPixKey("loja@lanches.com.br"),
		WithSessionID("sess-1"),
	)
	t.Cleanup(fx.flow.Dispose)
	return fx
}

func validAddress() domain.AddressForm {
	return domain.AddressForm{
		PostalCode:   "01001-000",
		Street:       "Praça da Sé",
		Number:       "100",
		Neighborhood: "Sé",
		City:         "São Paulo",
		RegionCode:   "sp",
	}
}

func validCard() domain.CardForm {
	return domain.CardForm{
		Number:     "4111 1111 1111 1111",
		HolderName: "Maria Silva",
		Expiry:     "12/30",
		CVV:        "123",
	}
}

// toPayment opens the flow with one X-Burger line and walks to the payment step.
func (fx *fixture) toPayment(t *testing.T) {
	t.Helper()
	fx.store.Add("X-Burger", decimal.RequireFromString("25.00"))
	fx.store.Add("X-Burger", decimal.RequireFromString("25.00"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())
	require.NoError(t, fx.flow.UpdateAddress(validAddress()))
	require.NoError(t, fx.flow.Next())
	require.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
}

func TestOpen_EmptyCart(t *testing.T) {
	fx := setupFlow(t)

	err := fx.flow.Open()

	require.ErrorIs(t, err, ErrEmptyCart)
	assert.False(t, fx.flow.IsOpen())
	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())
	assert.Equal(t, domain.SeverityWarning, fx.notifier.last().Severity)
	assert.Empty(t, fx.renderer.views)
}

func TestOpen_ResetsToCartStep(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	require.NoError(t, fx.flow.Open())

	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())
	assert.True(t, fx.renderer.last().Open)
	// draft survives reopening
	assert.Equal(t, "Praça da Sé", fx.renderer.last().Address.Street)
}

func TestNavigation_Clamped(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())

	require.NoError(t, fx.flow.Back())
	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())

	require.NoError(t, fx.flow.Next())
	assert.Equal(t, domain.CheckoutStepAddress, fx.flow.Step())
	require.NoError(t, fx.flow.Back())
	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())
}

func TestNavigation_RequiresOpenFlow(t *testing.T) {
	fx := setupFlow(t)

	assert.ErrorIs(t, fx.flow.Next(), ErrInvalidStepTransition)
	assert.ErrorIs(t, fx.flow.Back(), ErrInvalidStepTransition)
	assert.ErrorIs(t, fx.flow.Close(), ErrInvalidStepTransition)
	assert.ErrorIs(t, fx.flow.UpdateAddress(validAddress()), ErrInvalidStepTransition)
	_, err := fx.flow.Complete(context.Background())
	assert.ErrorIs(t, err, ErrInvalidStepTransition)
}

func TestNext_CartEmptiedAfterOpen(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())

	fx.store.Remove("Suco")

	assert.ErrorIs(t, fx.flow.Next(), ErrEmptyCart)
	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())
}

func TestNext_AddressValidation(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())

	require.NoError(t, fx.flow.UpdateAddress(domain.AddressForm{Street: "Rua A", Number: " "}))
	err := fx.flow.Next()

	require.ErrorIs(t, err, ErrValidationFailed)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"postal_code", "number", "neighborhood", "city", "region_code"}, verr.Fields)
	assert.Equal(t, domain.CheckoutStepAddress, fx.flow.Step())
	assert.Equal(t, domain.SeverityWarning, fx.notifier.last().Severity)

	require.NoError(t, fx.flow.UpdateAddress(validAddress()))
	require.NoError(t, fx.flow.Next())
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
	assert.True(t, fx.renderer.last().AddressConfirmed)
	assert.Equal(t, "SP", fx.renderer.last().Address.RegionCode)
	assert.Equal(t, "01001000", fx.renderer.last().Address.PostalCode)
}

func TestNext_ShortPostalCodeRejected(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())

	addr := validAddress()
	addr.PostalCode = "0100"
	require.NoError(t, fx.flow.UpdateAddress(addr))

	var verr *ValidationError
	require.ErrorAs(t, fx.flow.Next(), &verr)
	assert.Equal(t, []string{"postal_code"}, verr.Fields)
}

func TestNext_PaymentNeedsConfirmedSelection(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	assert.ErrorIs(t, fx.flow.Next(), ErrInvalidStepTransition)

	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCard, CardType: domain.CardTypeCredit}))
	assert.ErrorIs(t, fx.flow.Next(), ErrInvalidStepTransition)
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
}

func TestPix_AutoConfirmsAfterSettlementDelay(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	v := fx.renderer.last()
	assert.True(t, v.PaymentPending)
	require.NotNil(t, v.QRCode)
	assert.Equal(t, "Pix para loja@lanches.com.br\nValor: R$ 50,00", v.QRCode.Payload)
	assert.Equal(t, domain.SeverityInfo, fx.notifier.last().Severity)

	fx.sched.Advance(4 * time.Second)
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())

	fx.sched.Advance(time.Second)
	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())

	v = fx.renderer.last()
	assert.False(t, v.PaymentPending)
	require.NotNil(t, v.Payment)
	assert.Equal(t, domain.PaymentMethodPix, v.Payment.Method)
	assert.Contains(t, v.Summary, "2 × X-Burger @ 25,00")
	assert.Contains(t, v.Summary, "Total: R$ 50,00")
	require.NotNil(t, v.QRCode)
	assert.Equal(t, v.Summary, v.QRCode.Payload)
}

func TestPix_CloseBeforeSettlementCancels(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	require.NoError(t, fx.flow.Close())
	fx.sched.Advance(10 * time.Second)

	assert.False(t, fx.flow.IsOpen())
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
	assert.Equal(t, 2, fx.store.ItemCount(), "cart remains after closing")
	assert.Nil(t, fx.renderer.last().Payment)
}

func TestPix_BackBeforeSettlementCancels(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	require.NoError(t, fx.flow.Back())
	fx.sched.Advance(10 * time.Second)

	assert.Equal(t, domain.CheckoutStepAddress, fx.flow.Step())
	assert.False(t, fx.renderer.last().PaymentPending)
}

func TestPix_StaleFiringDiscarded(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))
	fire := fx.sched.lastTimer()

	require.NoError(t, fx.flow.Close())
	fire()

	assert.False(t, fx.flow.IsOpen())
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
}

func TestPix_ReselectReplacesPendingTask(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))
	first := fx.sched.lastTimer()

	fx.sched.Advance(3 * time.Second)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))
	first()
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())

	fx.sched.Advance(3 * time.Second)
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
	fx.sched.Advance(2 * time.Second)
	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
}

func TestPix_QRUnavailable(t *testing.T) {
	fx := setupFlow(t)
	fx.qr.err = errors.New("renderer down")
	fx.toPayment(t)

	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	v := fx.renderer.last()
	assert.Nil(t, v.QRCode)
	assert.Equal(t, "QR Code indisponível", v.QRMessage)
	assert.True(t, v.PaymentPending)
}

func TestPix_WithoutQRRenderer(t *testing.T) {
	store := cart.NewStore()
	sched := &manualScheduler{}
	renderer := &recordingRenderer{}
	flow := New(store, sched, WithRenderer(renderer))
	t.Cleanup(flow.Dispose)

	store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, flow.Open())
	require.NoError(t, flow.Next())
	require.NoError(t, flow.UpdateAddress(validAddress()))
	require.NoError(t, flow.Next())
	require.NoError(t, flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	assert.Equal(t, "QR Code indisponível", renderer.last().QRMessage)
}

func TestCard_SubmitThenProcessingDelay(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCard, CardType: domain.CardTypeDebit}))
	assert.True(t, fx.renderer.last().AwaitingCard)

	require.NoError(t, fx.flow.SubmitCard(validCard()))
	assert.True(t, fx.renderer.last().PaymentPending)
	assert.ErrorIs(t, fx.flow.SubmitCard(validCard()), ErrInvalidStepTransition)

	fx.sched.Advance(2 * time.Second)

	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
	v := fx.renderer.last()
	require.NotNil(t, v.Payment)
	assert.Equal(t, domain.CardTypeDebit, v.Payment.CardType)
	assert.Equal(t, "1111", v.Payment.CardLast4)
	assert.Equal(t, "Cartão de débito (final 1111)", v.PaymentLabel)
}

func TestCard_InvalidForm(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCard, CardType: domain.CardTypeCredit}))

	form := validCard()
	form.Number = "4111 1111 1111 1112"
	form.CVV = "12"

	var verr *ValidationError
	require.ErrorAs(t, fx.flow.SubmitCard(form), &verr)
	assert.Equal(t, []string{"number", "cvv"}, verr.Fields)
	assert.True(t, fx.renderer.last().AwaitingCard)
	assert.False(t, fx.renderer.last().PaymentPending)
}

func TestCard_SubmitWithoutSelection(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	assert.ErrorIs(t, fx.flow.SubmitCard(validCard()), ErrInvalidStepTransition)
}

func TestCard_InvalidCardType(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	err := fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCard, CardType: "PREPAID"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCash_ConfirmsImmediately(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	change := decimal.RequireFromString("100")
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCash, ChangeFor: &change}))

	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
	assert.Contains(t, fx.renderer.last().Summary, "Dinheiro - troco para R$ 100,00")
}

func TestCash_ChangeBelowTotal(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	change := decimal.RequireFromString("49.99")
	var verr *ValidationError
	require.ErrorAs(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCash, ChangeFor: &change}), &verr)
	assert.Equal(t, []string{"change_for"}, verr.Fields)
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
}

func TestSelectPayment_UnknownMethod(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	assert.ErrorIs(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: "BOLETO"}), ErrValidationFailed)
}

func TestSelectPayment_OnlyOnPaymentStep(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())

	assert.ErrorIs(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}), ErrInvalidStepTransition)
}

func TestBackFromConfirmation_KeepsPaymentForNext(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCash}))

	require.NoError(t, fx.flow.Back())
	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())

	require.NoError(t, fx.flow.Next())
	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())

	require.NoError(t, fx.flow.Next())
	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
}

func TestNextOnConfirmation_IsNoOp(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCash}))
	require.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
	rendered := len(fx.renderer.views)

	require.NoError(t, fx.flow.Next())

	assert.Equal(t, domain.CheckoutStepConfirmation, fx.flow.Step())
	assert.Len(t, fx.renderer.views, rendered)
	assert.NotNil(t, fx.flow.View().Payment)
}

func TestCartChangeDuringPixDropsPayment(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))

	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	fx.sched.Advance(10 * time.Second)

	assert.Equal(t, domain.CheckoutStepPayment, fx.flow.Step())
	v := fx.renderer.last()
	assert.False(t, v.PaymentPending)
	assert.Equal(t, 3, v.ItemCount)
	assert.Equal(t, "R$ 58,50", v.TotalLabel)
}

func TestComplete(t *testing.T) {
	fx := setupFlow(t)
	fx.flow.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodPix}))
	fx.sched.Advance(5 * time.Second)

	receipt, err := fx.flow.Complete(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, "sess-1", receipt.SessionID)
	assert.Equal(t, 2, receipt.ItemCount)
	assert.Equal(t, "50.00", receipt.Total.StringFixed(2))
	assert.Equal(t, domain.PaymentMethodPix, receipt.Payment.Method)
	assert.Equal(t, "Praça da Sé", receipt.Address.Street)
	assert.Contains(t, receipt.Summary, "Total: R$ 50,00")
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), receipt.CompletedAt)

	assert.Equal(t, 0, fx.store.Len())
	assert.False(t, fx.flow.IsOpen())
	assert.Equal(t, domain.CheckoutStepCart, fx.flow.Step())
	assert.Equal(t, domain.SeveritySuccess, fx.notifier.last().Severity)

	v := fx.renderer.last()
	assert.False(t, v.Open)
	assert.Empty(t, v.Address.Street)
	assert.Nil(t, v.Payment)

	require.Eventually(t, func() bool { return fx.publisher.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestComplete_PublishFailureDoesNotFailOrder(t *testing.T) {
	fx := setupFlow(t)
	fx.publisher.err = errors.New("broker down")
	fx.toPayment(t)
	require.NoError(t, fx.flow.SelectPayment(domain.PaymentSelection{Method: domain.PaymentMethodCash}))

	_, err := fx.flow.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fx.store.Len())
}

func TestComplete_OnlyFromConfirmation(t *testing.T) {
	fx := setupFlow(t)
	fx.toPayment(t)

	_, err := fx.flow.Complete(context.Background())
	assert.ErrorIs(t, err, ErrInvalidStepTransition)
	assert.Equal(t, 2, fx.store.ItemCount())
}

func TestLookup_FillsEmptyFields(t *testing.T) {
	fx := setupFlow(t)
	fx.lookup.result = domain.PostalAddress{Street: "Praça da Sé", Neighborhood: "Sé", City: "São Paulo", RegionCode: "SP"}
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())
	require.NoError(t, fx.flow.UpdateAddress(domain.AddressForm{Street: "Rua Própria", Number: "7"}))

	require.NoError(t, fx.flow.LookupPostalCode("01001-000"))
	assert.True(t, fx.renderer.last().LookupInFlight)

	require.Eventually(t, func() bool { return fx.sched.PostedLen() == 1 }, time.Second, 5*time.Millisecond)
	fx.sched.RunPosted()

	v := fx.renderer.last()
	assert.False(t, v.LookupInFlight)
	assert.Equal(t, "Rua Própria", v.Address.Street)
	assert.Equal(t, "Sé", v.Address.Neighborhood)
	assert.Equal(t, "São Paulo", v.Address.City)
	assert.Equal(t, "SP", v.Address.RegionCode)
	assert.Equal(t, "01001000", v.Address.PostalCode)
	assert.Equal(t, domain.SeveritySuccess, fx.notifier.last().Severity)
}

func TestLookup_Malformed(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())

	err := fx.flow.LookupPostalCode("123")

	assert.ErrorIs(t, err, postal.ErrMalformedInput)
	assert.Equal(t, domain.SeverityError, fx.notifier.last().Severity)
}

func TestLookup_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity domain.Severity
	}{
		{"not found", postal.ErrNotFound, domain.SeverityWarning},
		{"transport", postal.ErrTransport, domain.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setupFlow(t)
			fx.lookup.err = tt.err
			fx.store.Add("Suco", decimal.RequireFromString("8.50"))
			require.NoError(t, fx.flow.Open())
			require.NoError(t, fx.flow.Next())

			require.NoError(t, fx.flow.LookupPostalCode("99999999"))
			require.Eventually(t, func() bool { return fx.sched.PostedLen() == 1 }, time.Second, 5*time.Millisecond)
			fx.sched.RunPosted()

			assert.Equal(t, tt.severity, fx.notifier.last().Severity)
			assert.Empty(t, fx.renderer.last().Address.Street)
		})
	}
}

func TestLookup_LateResultAfterLeavingAddressIsDiscarded(t *testing.T) {
	fx := setupFlow(t)
	fx.lookup.release = make(chan struct{})
	fx.lookup.result = domain.PostalAddress{Street: "Praça da Sé", Neighborhood: "Sé", City: "São Paulo", RegionCode: "SP"}
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())

	require.NoError(t, fx.flow.LookupPostalCode("01001000"))
	require.NoError(t, fx.flow.Back())
	notes := len(fx.notifier.notes)

	close(fx.lookup.release)
	require.Eventually(t, func() bool { return fx.sched.PostedLen() == 1 }, time.Second, 5*time.Millisecond)
	fx.sched.RunPosted()

	// coming back to the address step must not revive the old result
	require.NoError(t, fx.flow.Next())
	assert.Empty(t, fx.renderer.last().Address.Street)
	assert.Len(t, fx.notifier.notes, notes)
}

func TestLookup_NewerLookupWins(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	require.NoError(t, fx.flow.Open())
	require.NoError(t, fx.flow.Next())

	slow := &fakeLookup{release: make(chan struct{}), result: domain.PostalAddress{City: "Antiga"}}
	fx.flow.lookup = slow
	require.NoError(t, fx.flow.LookupPostalCode("11111111"))

	fx.flow.lookup = &fakeLookup{result: domain.PostalAddress{City: "Nova"}}
	require.NoError(t, fx.flow.LookupPostalCode("22222222"))
	require.Eventually(t, func() bool { return fx.sched.PostedLen() == 1 }, time.Second, 5*time.Millisecond)

	close(slow.release)
	require.Eventually(t, func() bool { return fx.sched.PostedLen() == 2 }, time.Second, 5*time.Millisecond)
	fx.sched.RunPosted()

	assert.Equal(t, "Nova", fx.renderer.last().Address.City)
}

func TestRendersOnCartChangeWhileOpen(t *testing.T) {
	fx := setupFlow(t)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))
	assert.Empty(t, fx.renderer.views, "closed flow does not render cart changes")

	require.NoError(t, fx.flow.Open())
	before := len(fx.renderer.views)
	fx.store.Add("Suco", decimal.RequireFromString("8.50"))

	assert.Len(t, fx.renderer.views, before+1)
	assert.Equal(t, 2, fx.renderer.last().ItemCount)
}
