package cart

import "github.com/shopspring/decimal"

type EventKind string

const (
	EventAdded    EventKind = "added"
	EventAdjusted EventKind = "adjusted"
	EventRemoved  EventKind = "removed"
	EventCleared  EventKind = "cleared"
	EventRestored EventKind = "restored"
)

// Event is emitted after every mutation that changed the cart.
type Event struct {
	Kind        EventKind
	ProductName string
	ItemCount   int
	Total       decimal.Decimal
}

type Observer func(Event)
