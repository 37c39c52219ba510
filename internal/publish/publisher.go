// Package publish is the thin outbound wrapper handing committed audit
// events to NATS JetStream for downstream consumers. The event log remains
// the source of truth; consumers that miss a publish re-read the log.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeLedger/internal/trade"

	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "LEDGER_TRADE_EVENTS"

// eventMessage is the wire shape of one published audit event.
type eventMessage struct {
	Sequence  int64     `json:"sequence"`
	TradeID   string    `json:"trade_id"`
	OldStatus *string   `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSPublisher publishes audit events to ledger.trades.events.{new_status}.
type NATSPublisher struct {
	js jetstream.JetStream
}

func NewNATSPublisher(js jetstream.JetStream) *NATSPublisher {
	return &NATSPublisher{js: js}
}

// PublishEvent publishes one committed audit event.
func (p *NATSPublisher) PublishEvent(ctx context.Context, ev *trade.Event) error {
	msg := eventMessage{
		Sequence:  ev.Sequence,
		TradeID:   ev.TradeID,
		NewStatus: string(ev.NewStatus),
		Actor:     ev.Actor,
		Note:      ev.Note,
		Timestamp: ev.Timestamp,
	}
	if ev.OldStatus != nil {
		s := string(*ev.OldStatus)
		msg.OldStatus = &s
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("ledger.trades.events.%s", msg.NewStatus)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"ledger.trades.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
