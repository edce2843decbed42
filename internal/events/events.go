// Package events forwards ledger changes to a message broker without holding
// up the session that produced them.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"balance/internal/amqp"
	"balance/internal/core"
	"balance/internal/log"
)

const DefaultBufferSize = 256

// Publisher delivers one ledger event. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// LogPublisher only writes the event to the log. It is used when no broker
// is configured.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger.DebugContext(ctx, "Ledger event",
		log.FieldOperation, msg.Type,
		log.FieldSessionID, msg.SessionID,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldBalance, msg.Balance,
		log.FieldCount, msg.Count)
	return nil
}

// NewMessage converts a change into its wire form.
func NewMessage(change core.LedgerChange, at time.Time) *amqp.LedgerEventMessage {
	tx := change.Transaction
	return &amqp.LedgerEventMessage{
		Type:          string(change.Type),
		SessionID:     change.SessionID,
		TransactionID: tx.ID,
		Description:   tx.Description,
		Amount:        tx.Amount.String(),
		Kind:          tx.Kind.String(),
		Income:        change.Totals.Income.String(),
		Expenses:      change.Totals.Expenses.String(),
		Balance:       change.Totals.Balance.String(),
		Count:         change.Count,
		Timestamp:     at.UTC(),
	}
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Published int64
	Failed    int64
	Dropped   int64
}

// Dispatcher queues changes and publishes them from a single goroutine.
// When the queue is full new changes are dropped and counted.
type Dispatcher struct {
	pub    Publisher
	queue  chan *amqp.LedgerEventMessage
	logger *log.Logger
	now    func() time.Time

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewDispatcher(pub Publisher, bufferSize int, logger *log.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		pub:    pub,
		queue:  make(chan *amqp.LedgerEventMessage, bufferSize),
		logger: logger.WithComponent(log.ComponentEvents),
		now:    time.Now,
	}
}

// LedgerChanged implements tracker.Notifier. It never blocks.
func (d *Dispatcher) LedgerChanged(ctx context.Context, change core.LedgerChange) {
	msg := NewMessage(change, d.now())
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "Event queue full, dropping ledger event",
			log.FieldSessionID, change.SessionID,
			log.FieldTransactionID, change.Transaction.ID)
	}
}

// Run publishes queued events until ctx is done, then flushes what is left
// with a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-d.queue:
			d.publish(ctx, msg)
		case <-ctx.Done():
			d.flush()
			return nil
		}
	}
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-d.queue:
			d.publish(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if err := d.pub.PublishLedgerEvent(ctx, msg); err != nil {
		d.failed.Add(1)
		d.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldOperation, log.OpPublish,
			log.FieldSessionID, msg.SessionID,
			log.FieldTransactionID, msg.TransactionID)
		return
	}
	d.published.Add(1)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
