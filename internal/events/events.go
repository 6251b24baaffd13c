// Package events defines the change feed published to Kafka after every
// successful mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

const (
	TypeStockChanged          = "inventory.stock_changed"
	TypeItemUpdated           = "inventory.item_updated"
	TypeSaleRecorded          = "sale.recorded"
	TypeReconciliationApprove = "reconciliation.approved"
	TypeReconciliationDispute = "reconciliation.disputed"
)

type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ShopID    string          `json:"shop_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the envelope and then the payload into dst, if dst is non-nil.
func Decode(data []byte, dst any) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if dst != nil && len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, dst); err != nil {
			return e, fmt.Errorf("decode %s payload: %w", e.EventType, err)
		}
	}
	return e, nil
}

type StockChanged struct {
	ItemIDs []string `json:"item_ids"`
	Reason  string   `json:"reason"`
	SaleID  string   `json:"sale_id,omitempty"`
}

type ItemUpdated struct {
	ItemID string `json:"item_id"`
}

type SaleRecorded struct {
	SaleID  string   `json:"sale_id"`
	RepID   string   `json:"rep_id"`
	Total   string   `json:"total"`
	ItemIDs []string `json:"item_ids"`
}

type ReconciliationDecision struct {
	RepID            string `json:"rep_id"`
	SystemTotal      string `json:"system_total"`
	ReportedCash     string `json:"reported_cash"`
	Difference       string `json:"difference"`
	TransactionCount int    `json:"transaction_count"`
	Note             string `json:"note,omitempty"`
	DecidedBy        string `json:"decided_by"`
}

// Publisher emits events. Publishing never fails the calling operation;
// implementations log delivery errors.
type Publisher interface {
	Publish(ctx context.Context, eventType, shopID string, payload any)
}

// Producer is satisfied by broker.KafkaProducer.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaPublisher sends events in the background so a slow or unreachable
// broker never delays the operation that produced them.
type KafkaPublisher struct {
	producer Producer
	timeout  time.Duration
	logger   logger.ZapLogger
	wg       sync.WaitGroup
}

// NewKafkaPublisher keys messages by shop id. Delivery runs detached from the
// caller's cancellation, bounded by timeout.
func NewKafkaPublisher(p Producer, timeout time.Duration, log logger.ZapLogger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, timeout: timeout, logger: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, shopID string, payload any) {
	value, err := encode(eventType, shopID, payload)
	if err != nil {
		p.logger.Error("Failed to encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.producer.Publish(ctx, []byte(shopID), value); err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("event_type", eventType),
				zap.String("shop_id", shopID),
				zap.Error(err),
			)
		}
	}()
}

// Close waits for in-flight deliveries. Call it before closing the producer.
func (p *KafkaPublisher) Close() {
	p.wg.Wait()
}

func encode(eventType, shopID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		ShopID:    shopID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	})
}

type nopPublisher struct{}

func NewNop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, string, any) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType, shopID string, payload any) {
	value, err := encode(eventType, shopID, payload)
	if err != nil {
		return
	}
	e, err := Decode(value, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
