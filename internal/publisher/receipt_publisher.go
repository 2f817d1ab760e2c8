package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "orders-completed"
	EventType    = "order.completed"
)

var ErrClosed = errors.New("receipt publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReceiptPublisher writes completed orders to a kafka topic keyed by order id,
// so every event of one order lands on the same partition.
type ReceiptPublisher struct {
	writer messageWriter
	logger *zap.Logger
	closed atomic.Bool
}

func NewReceiptPublisher(brokers []string, topic string, logger *zap.Logger) *ReceiptPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newWithWriter(w, logger)
}

func newWithWriter(w messageWriter, logger *zap.Logger) *ReceiptPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptPublisher{writer: w, logger: logger.Named("publisher")}
}

func (p *ReceiptPublisher) Publish(ctx context.Context, receipt domain.Receipt) error {
	if p.closed.Load() {
		return ErrClosed
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt %s: %w", receipt.OrderID, err)
	}

	msg := kafka.Message{
		Key:   []byte(receipt.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "session_id", Value: []byte(receipt.SessionID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish receipt %s: %w", receipt.OrderID, err)
	}

	p.logger.Info("receipt published",
		zap.String("order_id", receipt.OrderID),
		zap.String("total", receipt.Total.StringFixed(2)),
	)
	return nil
}

// Close flushes pending writes; later publishes fail with ErrClosed.
func (p *ReceiptPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
