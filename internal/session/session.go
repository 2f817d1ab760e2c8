package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/checkout"
	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/juzeexs/lanches-bebidas/internal/eventloop"
	"go.uber.org/zap"
)

const restoreTimeout = 2 * time.Second

// Session is one visitor's cart and checkout, driven by its own event loop.
// Cart and Flow may only be touched inside Do.
type Session struct {
	ID    string
	Cart  *cart.Store
	Flow  *checkout.Flow
	Inbox *Inbox
	Views *ViewRecorder

	loop     *eventloop.Loop
	lastSeen atomic.Int64
	logger   *zap.Logger
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Persistence   cart.Persistence
	Lookup        checkout.PostalLookup
	LookupTimeout time.Duration
	QRCodes       checkout.QRRenderer
	Publisher     checkout.ReceiptPublisher
	Delays        checkout.Delays
	PixKey        string
	InboxSize     int
	Logger        *zap.Logger
}

func newSession(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", id))
	if deps.Delays == (checkout.Delays{}) {
		deps.Delays = checkout.DefaultDelays()
	}

	s := &Session{
		ID:     id,
		Inbox:  NewInbox(deps.InboxSize, logger.Named("inbox")),
		Views:  NewViewRecorder(logger),
		loop:   eventloop.New(logger.Named("loop")),
		logger: logger,
	}
	s.touch()

	cartOpts := []cart.Option{cart.WithLogger(logger.Named("cart"))}
	if deps.Persistence != nil {
		cartOpts = append(cartOpts,
			cart.WithPersistence(deps.Persistence, id),
			cart.WithErrorHandler(func(error) {
				s.Inbox.Notify(domain.Notification{
					Message:  "Não foi possível salvar seu carrinho.",
					Severity: domain.SeverityWarning,
				})
			}))
	}
	s.Cart = cart.NewStore(cartOpts...)
	s.Cart.Subscribe(s.announce)

	flowOpts := []checkout.Option{
		checkout.WithRenderer(s.Views),
		checkout.WithNotifier(s.Inbox),
		checkout.WithDelays(deps.Delays),
		checkout.WithPixKey(deps.PixKey),
		checkout.WithSessionID(id),
		checkout.WithLogger(logger.Named("checkout")),
	}
	if deps.Lookup != nil {
		flowOpts = append(flowOpts, checkout.WithPostalLookup(deps.Lookup, deps.LookupTimeout))
	}
	if deps.QRCodes != nil {
		flowOpts = append(flowOpts, checkout.WithQRRenderer(deps.QRCodes))
	}
	if deps.Publisher != nil {
		flowOpts = append(flowOpts, checkout.WithReceiptPublisher(deps.Publisher))
	}
	s.Flow = checkout.New(s.Cart, s.loop, flowOpts...)

	// queued first, so every command sees the restored cart
	s.loop.Post(s.restore)
	return s
}

func (s *Session) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	if err := s.Cart.Restore(ctx); err != nil {
		s.Inbox.Notify(domain.Notification{
			Message:  "Não foi possível recuperar seu carrinho.",
			Severity: domain.SeverityWarning,
		})
	}
}

// announce turns cart events into toasts.
func (s *Session) announce(ev cart.Event) {
	switch ev.Kind {
	case cart.EventAdded:
		s.Inbox.Notify(domain.Notification{Message: ev.ProductName + " adicionado ao carrinho!", Severity: domain.SeveritySuccess})
	case cart.EventRemoved:
		s.Inbox.Notify(domain.Notification{Message: ev.ProductName + " removido do carrinho.", Severity: domain.SeverityInfo})
	}
}

// Do runs fn on the session loop and returns its error.
func (s *Session) Do(ctx context.Context, fn func() error) error {
	s.touch()
	var err error
	if errDo := s.loop.Do(ctx, func() { err = fn() }); errDo != nil {
		if errors.Is(errDo, eventloop.ErrClosed) {
			return ErrSessionClosed
		}
		return errDo
	}
	return err
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// close cancels pending checkout work and stops the loop.
func (s *Session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.loop.Do(ctx, s.Flow.Dispose); err != nil {
		s.logger.Warn("session dispose failed", zap.Error(err))
	}
	s.loop.Close()
}
