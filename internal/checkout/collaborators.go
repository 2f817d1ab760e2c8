package checkout

import (
	"context"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
)

// Renderer receives a fresh View after every transition and after every cart
// change while checkout is open.
type Renderer interface {
	Render(View)
}

type Notifier interface {
	Notify(domain.Notification)
}

type PostalLookup interface {
	Lookup(ctx context.Context, code string) (domain.PostalAddress, error)
}

type QRRenderer interface {
	Render(payload string, size int) (domain.QRCode, error)
}

type ReceiptPublisher interface {
	Publish(ctx context.Context, receipt domain.Receipt) error
}

// Scheduler is the session's single logical thread. Post and the callbacks
// passed to AfterFunc run on it one at a time.
type Scheduler interface {
	Post(fn func()) bool
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Delays are the simulated payment processing times.
type Delays struct {
	PixSettlement  time.Duration
	CardProcessing time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		PixSettlement:  5 * time.Second,
		CardProcessing: 2 * time.Second,
	}
}
