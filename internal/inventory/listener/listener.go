package listener

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-retail-service/internal/events"
	"github.com/fekuna/omnipos-retail-service/internal/inventory"
	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// InventoryListener keeps caches and the search index of this instance in
// step with stock changes made anywhere in the fleet.
type InventoryListener struct {
	consumer     MessageReader
	uc           inventory.UseCase
	logger       logger.ZapLogger
	retryBackoff time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer:     consumer,
		uc:           uc,
		logger:       logger,
		retryBackoff: time.Second,
	}
}

// Start consumes until ctx is cancelled.
func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		msg, err := l.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Stopping Inventory Kafka Listener")
				return
			}
			l.logger.Error("Failed to read kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				l.logger.Info("Stopping Inventory Kafka Listener")
				return
			case <-time.After(l.retryBackoff):
			}
			continue
		}
		l.processMessage(ctx, msg.Value)
	}
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var itemIDs []string
	event, err := events.Decode(value, nil)
	if err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case events.TypeStockChanged:
		var p events.StockChanged
		if _, err := events.Decode(value, &p); err != nil {
			l.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}
		itemIDs = p.ItemIDs
	case events.TypeItemUpdated:
		var p events.ItemUpdated
		if _, err := events.Decode(value, &p); err != nil {
			l.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}
		itemIDs = []string{p.ItemID}
	default:
		return
	}

	l.logger.Debug("Processing inventory event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("shop_id", event.ShopID),
	)
	if err := l.uc.Refresh(ctx, event.ShopID, itemIDs); err != nil {
		l.logger.Error("Failed to refresh inventory",
			zap.String("event_id", event.EventID),
			zap.String("shop_id", event.ShopID),
			zap.Error(err),
		)
	}
}
