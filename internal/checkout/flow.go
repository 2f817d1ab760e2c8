// Package checkout sequences the checkout modal: cart review, address,
// payment and confirmation.
//
// A Flow is owned by one session and must only be used from that session's
// Scheduler. Payment delays and postal lookups complete by posting back to the
// Scheduler, and anything that arrives after the customer navigated away is
// dropped.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/postal"
	"github.com/juzeexs/lanches-bebidas/internal/summary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	qrUnavailable = "QR Code indisponível"
	qrSize        = 200

	defaultLookupTimeout = 5 * time.Second
	publishTimeout       = 10 * time.Second
)

type pendingTask struct {
	id   uint64
	stop func() bool
}

type Flow struct {
	cart  *cart.Store
	sched Scheduler

	renderer  Renderer
	notifier  Notifier
	lookup    PostalLookup
	qrcodes   QRRenderer
	publisher ReceiptPublisher

	delays        Delays
	pixKey        string
	sessionID     string
	lookupTimeout time.Duration
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time

	open             bool
	step             domain.CheckoutStep
	draft            domain.AddressForm
	address          domain.AddressForm
	addressConfirmed bool

	choice       domain.PaymentMethod
	cardType     domain.CardType
	awaitingCard bool
	payment      *domain.PaymentSelection
	qr           *domain.QRCode
	qrMessage    string

	pending   *pendingTask
	taskSeq   uint64
	lookupSeq uint64
	lookingUp bool

	unsubscribe func()
}

type Option func(*Flow)

func WithRenderer(r Renderer) Option {
	return func(f *Flow) { f.renderer = r }
}

func WithNotifier(n Notifier) Option {
	return func(f *Flow) { f.notifier = n }
}

func WithPostalLookup(l PostalLookup, timeout time.Duration) Option {
	return func(f *Flow) {
		f.lookup = l
		if timeout > 0 {
			f.lookupTimeout = timeout
		}
	}
}

// WithQRRenderer sets the QR collaborator. Without one the view shows an
// unavailable message in place of the image.
func WithQRRenderer(q QRRenderer) Option {
	return func(f *Flow) { f.qrcodes = q }
}

func WithReceiptPublisher(p ReceiptPublisher) Option {
	return func(f *Flow) { f.publisher = p }
}

func WithDelays(d Delays) Option {
	return func(f *Flow) { f.delays = d }
}

func WithPixKey(key string) Option {
	return func(f *Flow) { f.pixKey = key }
}

func WithSessionID(id string) Option {
	return func(f *Flow) { f.sessionID = id }
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) { f.logger = logger }
}

// WithClock overrides time.Now for receipts.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// New creates a closed flow over store. Cart changes re-render the flow while
// it is open.
func New(store *cart.Store, sched Scheduler, opts ...Option) *Flow {
	f := &Flow{
		cart:          store,
		sched:         sched,
		delays:        DefaultDelays(),
		lookupTimeout: defaultLookupTimeout,
		logger:        zap.NewNop(),
		tracer:        otel.Tracer("github.com/juzeexs/lanches-bebidas/internal/checkout"),
		now:           time.Now,
		step:          domain.CheckoutStepCart,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("session_id", f.sessionID))
	f.unsubscribe = store.Subscribe(f.onCartChanged)
	return f
}

// Dispose detaches the flow from its cart and cancels any scheduled payment.
func (f *Flow) Dispose() {
	f.cancelPending()
	f.lookupSeq++
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
}

func (f *Flow) IsOpen() bool {
	return f.open
}

func (f *Flow) Step() domain.CheckoutStep {
	return f.step
}

// Open shows the checkout at the cart review step. Any payment chosen in an
// earlier attempt is discarded; the address draft is kept.
func (f *Flow) Open() error {
	if f.cart.Len() == 0 {
		f.notify("Seu carrinho está vazio.", domain.SeverityWarning)
		return ErrEmptyCart
	}

	f.leaveStep()
	f.payment = nil
	f.open = true
	f.step = domain.CheckoutStepCart
	f.logger.Info("checkout opened", zap.Int("items", f.cart.ItemCount()))
	f.render()
	return nil
}

// Next advances one step after validating the current one. It is a no-op on
// the confirmation step.
func (f *Flow) Next() error {
	if !f.open {
		return ErrInvalidStepTransition
	}
	if f.step.IsLast() {
		return nil
	}

	switch f.step {
	case domain.CheckoutStepCart:
		if f.cart.Len() == 0 {
			f.notify("Seu carrinho está vazio.", domain.SeverityWarning)
			return ErrEmptyCart
		}
	case domain.CheckoutStepAddress:
		if err := f.commitAddress(); err != nil {
			return err
		}
	case domain.CheckoutStepPayment:
		// leaving payment is driven by the payment protocol until a
		// selection is confirmed
		if f.payment == nil {
			return fmt.Errorf("%w: no confirmed payment", ErrInvalidStepTransition)
		}
	}

	return f.moveTo(f.step.Next())
}

// Back returns to the previous step. It is a no-op on the cart step.
func (f *Flow) Back() error {
	if !f.open {
		return ErrInvalidStepTransition
	}
	if f.step == domain.CheckoutStepCart {
		return nil
	}
	return f.moveTo(f.step.Prev())
}

// Close hides the checkout. Scheduled payments and lookups in flight are
// abandoned; the cart is left untouched.
func (f *Flow) Close() error {
	if !f.open {
		return ErrInvalidStepTransition
	}

	f.leaveStep()
	f.open = false
	f.logger.Info("checkout closed", zap.String("step", f.step.String()))
	f.render()
	return nil
}

// UpdateAddress replaces the address draft.
func (f *Flow) UpdateAddress(form domain.AddressForm) error {
	if !f.open || f.step != domain.CheckoutStepAddress {
		return ErrInvalidStepTransition
	}
	f.draft = form.Normalize()
	f.addressConfirmed = false
	f.render()
	return nil
}

// LookupPostalCode starts an asynchronous lookup of code. A successful result
// fills the draft fields that are still empty.
func (f *Flow) LookupPostalCode(code string) error {
	if !f.open || f.step != domain.CheckoutStepAddress {
		return ErrInvalidStepTransition
	}

	digits := domain.DigitsOnly(code)
	if len(digits) != 8 {
		f.notify("CEP inválido. Informe os 8 dígitos.", domain.SeverityError)
		return fmt.Errorf("%w: %q", postal.ErrMalformedInput, code)
	}
	if f.lookup == nil {
		f.notify("Busca de CEP indisponível. Preencha o endereço manualmente.", domain.SeverityError)
		return fmt.Errorf("%w: no lookup configured", postal.ErrTransport)
	}

	f.draft.PostalCode = digits
	f.lookupSeq++
	seq := f.lookupSeq
	f.lookingUp = true

	lookup, timeout := f.lookup, f.lookupTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		found, err := lookup.Lookup(ctx, digits)
		f.sched.Post(func() {
			f.applyLookup(seq, found, err)
		})
	}()

	f.render()
	return nil
}

func (f *Flow) applyLookup(seq uint64, found domain.PostalAddress, err error) {
	if seq != f.lookupSeq || !f.open || f.step != domain.CheckoutStepAddress {
		f.logger.Debug("stale postal lookup discarded", zap.Uint64("seq", seq))
		return
	}
	f.lookingUp = false

	switch {
	case err == nil:
		f.draft = f.draft.FillMissing(found)
		f.notify("Endereço encontrado!", domain.SeveritySuccess)
	case errors.Is(err, postal.ErrNotFound):
		f.notify("CEP não encontrado.", domain.SeverityWarning)
	case errors.Is(err, postal.ErrMalformedInput):
		f.notify("CEP inválido. Informe os 8 dígitos.", domain.SeverityError)
	default:
		f.logger.Warn("postal lookup failed", zap.Error(err))
		f.notify("Não foi possível buscar o CEP. Preencha o endereço manualmente.", domain.SeverityError)
	}
	f.render()
}

// SelectPayment chooses how to pay. Pix confirms by itself after the
// settlement delay, cash confirms at once and card waits for SubmitCard.
// Choosing again replaces the previous choice.
func (f *Flow) SelectPayment(sel domain.PaymentSelection) error {
	if !f.open || f.step != domain.CheckoutStepPayment {
		return ErrInvalidStepTransition
	}

	f.cancelPending()
	f.clearChoice()
	f.payment = nil
	total := f.cart.Total()

	switch sel.Method {
	case domain.PaymentMethodPix:
		f.choice = domain.PaymentMethodPix
		f.renderQR(summary.PixPayload(f.pixKey, total))
		f.notify("Aguardando confirmação do pagamento via Pix...", domain.SeverityInfo)
		f.schedule(f.delays.PixSettlement, func() {
			f.confirm(domain.PaymentSelection{Method: domain.PaymentMethodPix}, "Pagamento via Pix confirmado!")
		})

	case domain.PaymentMethodCard:
		if !sel.CardType.Valid() {
			return f.invalid([]string{"card_type"}, "Escolha crédito ou débito.")
		}
		f.choice = domain.PaymentMethodCard
		f.cardType = sel.CardType
		f.awaitingCard = true

	case domain.PaymentMethodCash:
		if sel.ChangeFor != nil && sel.ChangeFor.LessThan(total) {
			return f.invalid([]string{"change_for"}, "O troco deve ser para um valor igual ou maior que o total.")
		}
		f.choice = domain.PaymentMethodCash
		f.confirm(domain.PaymentSelection{Method: domain.PaymentMethodCash, ChangeFor: sel.ChangeFor}, "Pagamento em dinheiro selecionado.")
		return nil

	default:
		return f.invalid([]string{"method"}, "Escolha uma forma de pagamento.")
	}

	f.render()
	return nil
}

// SubmitCard checks the card form format and, once valid, confirms the card
// payment after the processing delay. Only the last four digits are kept.
func (f *Flow) SubmitCard(form domain.CardForm) error {
	if !f.open || f.step != domain.CheckoutStepPayment || !f.awaitingCard {
		return ErrInvalidStepTransition
	}

	if invalid := form.InvalidFields(); len(invalid) > 0 {
		return f.invalid(invalid, "Verifique os dados do cartão.")
	}

	cardType := f.cardType
	if form.Type.Valid() {
		cardType = form.Type
	}
	sel := domain.PaymentSelection{
		Method:    domain.PaymentMethodCard,
		CardType:  cardType,
		CardLast4: form.Last4(),
	}

	f.awaitingCard = false
	f.notify("Processando pagamento...", domain.SeverityInfo)
	f.schedule(f.delays.CardProcessing, func() {
		f.confirm(sel, "Pagamento aprovado!")
	})
	f.render()
	return nil
}

// Complete finishes the order from the confirmation step: the receipt is
// published, the cart cleared and the flow reset.
func (f *Flow) Complete(ctx context.Context) (domain.Receipt, error) {
	if !f.open || f.step != domain.CheckoutStepConfirmation || f.payment == nil {
		return domain.Receipt{}, ErrInvalidStepTransition
	}
	if f.cart.Len() == 0 {
		f.notify("Seu carrinho está vazio.", domain.SeverityWarning)
		return domain.Receipt{}, ErrEmptyCart
	}

	ctx, span := f.tracer.Start(ctx, "checkout.Complete")
	defer span.End()

	lines := f.cart.Lines()
	receipt := domain.Receipt{
		OrderID:     uuid.NewString(),
		SessionID:   f.sessionID,
		Lines:       lines,
		Address:     f.address,
		Payment:     *f.payment,
		ItemCount:   domain.LinesItemCount(lines),
		Total:       domain.LinesTotal(lines),
		Summary:     summary.Build(lines, f.address, *f.payment),
		CompletedAt: f.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("order.id", receipt.OrderID),
		attribute.String("order.total", receipt.Total.StringFixed(2)),
		attribute.String("payment.method", string(receipt.Payment.Method)),
	)

	f.publish(ctx, receipt)

	// reset before clearing so the cart observer sees a closed flow
	f.reset()
	f.cart.Clear()

	f.logger.Info("order completed",
		zap.String("order_id", receipt.OrderID),
		zap.Int("items", receipt.ItemCount),
		zap.String("total", receipt.Total.StringFixed(2)))
	f.notify("Pedido finalizado com sucesso! Obrigado pela preferência.", domain.SeveritySuccess)
	f.render()
	return receipt, nil
}

func (f *Flow) publish(ctx context.Context, receipt domain.Receipt) {
	if f.publisher == nil {
		return
	}
	publisher, logger := f.publisher, f.logger
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := publisher.Publish(ctx, receipt); err != nil {
			logger.Error("failed to publish receipt", zap.String("order_id", receipt.OrderID), zap.Error(err))
		}
	}()
}

func (f *Flow) commitAddress() error {
	f.draft = f.draft.Normalize()
	missing := f.draft.MissingFields()
	if f.draft.PostalCode != "" && len(f.draft.PostalCode) != 8 {
		missing = append([]string{"postal_code"}, missing...)
	}
	if len(missing) > 0 {
		return f.invalid(missing, "Preencha os campos obrigatórios do endereço.")
	}
	f.address = f.draft
	f.addressConfirmed = true
	return nil
}

func (f *Flow) invalid(fields []string, message string) error {
	f.notify(message, domain.SeverityWarning)
	f.render()
	return &ValidationError{Fields: fields}
}

// moveTo changes step by one and drops whatever belonged to the step being
// left.
func (f *Flow) moveTo(next domain.CheckoutStep) error {
	if !f.step.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStepTransition, f.step, next)
	}

	f.leaveStep()
	f.logger.Debug("checkout step changed", zap.String("from", f.step.String()), zap.String("to", next.String()))
	f.step = next
	if next == domain.CheckoutStepConfirmation && f.payment != nil {
		f.renderQR(summary.Build(f.cart.Lines(), f.address, *f.payment))
	}
	f.render()
	return nil
}

// confirm records a payment and advances to confirmation. It runs either
// directly or from a scheduled task that is still current.
func (f *Flow) confirm(sel domain.PaymentSelection, message string) {
	if !f.open || f.step != domain.CheckoutStepPayment {
		return
	}
	f.payment = &sel
	f.notify(message, domain.SeveritySuccess)
	if err := f.moveTo(domain.CheckoutStepConfirmation); err != nil {
		f.logger.Error("confirm payment", zap.Error(err))
	}
}

func (f *Flow) schedule(d time.Duration, fn func()) {
	f.cancelPending()
	f.taskSeq++
	id := f.taskSeq
	stop := f.sched.AfterFunc(d, func() {
		// the timer may already be queued on the loop when it is cancelled
		if f.pending == nil || f.pending.id != id {
			f.logger.Debug("stale scheduled task discarded", zap.Uint64("task", id))
			return
		}
		f.pending = nil
		fn()
	})
	f.pending = &pendingTask{id: id, stop: stop}
}

func (f *Flow) cancelPending() {
	if f.pending == nil {
		return
	}
	f.pending.stop()
	f.pending = nil
}

// leaveStep cancels everything tied to the current step.
func (f *Flow) leaveStep() {
	f.cancelPending()
	f.clearChoice()
	f.lookupSeq++
	f.lookingUp = false
}

func (f *Flow) clearChoice() {
	f.choice = ""
	f.cardType = ""
	f.awaitingCard = false
	f.qr = nil
	f.qrMessage = ""
}

func (f *Flow) reset() {
	f.leaveStep()
	f.open = false
	f.step = domain.CheckoutStepCart
	f.draft = domain.AddressForm{}
	f.address = domain.AddressForm{}
	f.addressConfirmed = false
	f.payment = nil
}

func (f *Flow) renderQR(payload string) {
	f.qr = nil
	f.qrMessage = ""
	if f.qrcodes == nil {
		f.qrMessage = qrUnavailable
		return
	}
	code, err := f.qrcodes.Render(payload, qrSize)
	if err != nil {
		f.logger.Warn("qr code unavailable", zap.Error(err))
		f.qrMessage = qrUnavailable
		return
	}
	f.qr = &code
}

// onCartChanged keeps an open checkout in step with the cart. A payment in
// progress was priced on the old total, so it is dropped.
func (f *Flow) onCartChanged(ev cart.Event) {
	if !f.open {
		return
	}
	switch f.step {
	case domain.CheckoutStepPayment:
		if f.pending != nil || f.choice != "" || f.payment != nil {
			f.cancelPending()
			f.clearChoice()
			f.payment = nil
			f.notify("Carrinho alterado. Escolha a forma de pagamento novamente.", domain.SeverityInfo)
		}
	case domain.CheckoutStepConfirmation:
		if f.payment != nil {
			f.renderQR(summary.Build(f.cart.Lines(), f.address, *f.payment))
		}
	}
	f.logger.Debug("cart changed during checkout", zap.String("event", string(ev.Kind)))
	f.render()
}

func (f *Flow) render() {
	if f.renderer != nil {
		f.renderer.Render(f.View())
	}
}

func (f *Flow) notify(message string, severity domain.Severity) {
	if f.notifier != nil {
		f.notifier.Notify(domain.Notification{Message: message, Severity: severity})
	}
}
