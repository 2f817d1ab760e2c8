package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const persistTimeout = time.Second

// MaxLineQuantity caps the units of a single product in the cart.
const MaxLineQuantity = 99

// Persistence stores a session's cart lines under a named slot.
type Persistence interface {
	Get(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Set(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Delete(ctx context.Context, sessionID string) error
}

// Store owns the cart lines of one session.
// It is not safe for concurrent use: callers serialize access through the
// session's event loop.
type Store struct {
	lines     []domain.CartLine
	observers map[int]Observer
	nextObs   int

	sessionID string
	slot      Persistence
	onError   func(error)
	logger    *zap.Logger
}

type Option func(*Store)

// WithPersistence saves the cart to slot under sessionID after every mutation.
func WithPersistence(slot Persistence, sessionID string) Option {
	return func(s *Store) {
		s.slot = slot
		s.sessionID = sessionID
	}
}

// WithErrorHandler receives persistence failures after they are logged.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		observers: make(map[int]Observer),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer and returns a function removing it.
// Observers run in subscription order and must not mutate the store.
func (s *Store) Subscribe(o Observer) func() {
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	return func() {
		delete(s.observers, id)
	}
}

// Add puts one unit of name in the cart. An existing line keeps its first
// seen price. A line already at MaxLineQuantity is left as is.
func (s *Store) Add(name string, price decimal.Decimal) {
	if i := s.indexOf(name); i >= 0 {
		if s.lines[i].Quantity >= MaxLineQuantity {
			s.logger.Warn("add skipped", zap.String("product", name), zap.Error(ErrQuantityOutOfRange))
			return
		}
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, domain.CartLine{
			ProductName: name,
			UnitPrice:   price,
			Quantity:    1,
		})
	}
	s.changed(EventAdded, name)
}

// AddFromInput is Add for untrusted input. Invalid input is logged and the
// add is skipped.
func (s *Store) AddFromInput(name, rawPrice string) error {
	if name == "" {
		s.logger.Warn("add skipped", zap.Error(ErrInvalidProduct))
		return ErrInvalidProduct
	}
	price, err := domain.ParseAmount(rawPrice)
	if err != nil {
		s.logger.Warn("add skipped", zap.String("product", name), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	s.Add(name, price)
	return nil
}

// AdjustQuantity applies delta to the named line and drops the line when its
// quantity reaches zero. Unknown names are ignored. A delta that would take
// the line above MaxLineQuantity is rejected and changes nothing.
func (s *Store) AdjustQuantity(name string, delta int) error {
	i := s.indexOf(name)
	if i < 0 || delta == 0 {
		return nil
	}
	qty := s.lines[i].Quantity
	if delta > MaxLineQuantity-qty {
		s.logger.Warn("adjust skipped", zap.String("product", name), zap.Int("delta", delta))
		return fmt.Errorf("%w: %d + %d exceeds %d", ErrQuantityOutOfRange, qty, delta, MaxLineQuantity)
	}
	if delta <= -qty {
		s.Remove(name)
		return nil
	}
	s.lines[i].Quantity += delta
	s.changed(EventAdjusted, name)
	return nil
}

// Remove deletes the named line if present.
func (s *Store) Remove(name string) {
	i := s.indexOf(name)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.changed(EventRemoved, name)
}

func (s *Store) Clear() {
	if len(s.lines) == 0 {
		return
	}
	s.lines = nil
	s.changed(EventCleared, "")
}

// Total is the sum of price x quantity, rounded to cents.
func (s *Store) Total() decimal.Decimal {
	return domain.LinesTotal(s.lines)
}

func (s *Store) ItemCount() int {
	return domain.LinesItemCount(s.lines)
}

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Restore loads the lines saved for the session, if any. A missing slot or
// nothing saved leaves the cart empty.
func (s *Store) Restore(ctx context.Context) error {
	if s.slot == nil {
		return nil
	}
	lines, err := s.slot.Get(ctx, s.sessionID)
	if errors.Is(err, ErrNoSavedCart) {
		return nil
	}
	if err != nil {
		s.logger.Warn("cart restore failed", zap.String("session_id", s.sessionID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}

	s.lines = s.lines[:0]
	for _, l := range lines {
		if l.ProductName == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			s.logger.Warn("dropping invalid saved line", zap.String("product", l.ProductName), zap.Int("quantity", l.Quantity))
			continue
		}
		if l.Quantity > MaxLineQuantity {
			l.Quantity = MaxLineQuantity
		}
		if i := s.indexOf(l.ProductName); i >= 0 {
			s.lines[i].Quantity = min(s.lines[i].Quantity+l.Quantity, MaxLineQuantity)
			continue
		}
		s.lines = append(s.lines, l)
	}
	if len(s.lines) > 0 {
		s.notify(EventRestored, "")
	}
	return nil
}

func (s *Store) indexOf(name string) int {
	for i := range s.lines {
		if s.lines[i].ProductName == name {
			return i
		}
	}
	return -1
}

func (s *Store) changed(kind EventKind, name string) {
	s.persist()
	s.notify(kind, name)
}

func (s *Store) notify(kind EventKind, name string) {
	ev := Event{
		Kind:        kind,
		ProductName: name,
		ItemCount:   s.ItemCount(),
		Total:       s.Total(),
	}
	for id := 0; id < s.nextObs; id++ {
		if o, ok := s.observers[id]; ok {
			o(ev)
		}
	}
}

func (s *Store) persist() {
	if s.slot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if len(s.lines) == 0 {
		err = s.slot.Delete(ctx, s.sessionID)
	} else {
		err = s.slot.Set(ctx, s.sessionID, s.Lines())
	}
	if err != nil {
		s.logger.Warn("cart persist failed", zap.String("session_id", s.sessionID), zap.Error(err))
		if s.onError != nil {
			s.onError(fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err))
		}
	}
}
