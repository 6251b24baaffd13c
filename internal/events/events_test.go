package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fekuna/omnipos-retail-service/pkg/logger"
)

type fakeProducer struct {
	mu         sync.Mutex
	key, value []byte
	err        error
	block      chan struct{}
}

func (f *fakeProducer) Publish(ctx context.Context, key, value []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.key, f.value = key, value
	return f.err
}

func (f *fakeProducer) sent() (key, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.value
}

func TestKafkaPublisher_Envelope(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaPublisher(prod, time.Second, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Publish(ctx, TypeStockChanged, "shop-1", StockChanged{ItemIDs: []string{"a", "b"}, Reason: "sale", SaleID: "s-1"})
	pub.Close()

	key, value := prod.sent()
	assert.Equal(t, "shop-1", string(key))

	var payload StockChanged
	e, err := Decode(value, &payload)
	require.NoError(t, err)
	assert.Equal(t, TypeStockChanged, e.EventType)
	assert.Equal(t, "shop-1", e.ShopID)
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, []string{"a", "b"}, payload.ItemIDs)
	assert.Equal(t, "s-1", payload.SaleID)
}

func TestKafkaPublisher_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewKafkaPublisher(&fakeProducer{err: errors.New("broker down")}, time.Second, logger.Wrap(zap.New(core)))

	pub.Publish(context.Background(), TypeItemUpdated, "shop-1", ItemUpdated{ItemID: "x"})
	pub.Close()

	require.Equal(t, 1, logs.FilterMessage("Failed to publish event").Len())
}

func TestKafkaPublisher_DoesNotBlockCaller(t *testing.T) {
	defer goleak.VerifyNone(t)

	prod := &fakeProducer{block: make(chan struct{})}
	pub := NewKafkaPublisher(prod, 10*time.Second, logger.NewNop())

	start := time.Now()
	pub.Publish(context.Background(), TypeSaleRecorded, "shop-1", SaleRecorded{SaleID: "s-1"})
	assert.Less(t, time.Since(start), time.Second, "publish returns while the broker is stalled")

	key, _ := prod.sent()
	assert.Nil(t, key)

	close(prod.block)
	pub.Close()
	key, _ = prod.sent()
	assert.Equal(t, "shop-1", string(key))
}

func TestKafkaPublisher_StalledBrokerTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zap.InfoLevel)
	prod := &fakeProducer{block: make(chan struct{})}
	pub := NewKafkaPublisher(prod, 50*time.Millisecond, logger.Wrap(zap.New(core)))

	pub.Publish(context.Background(), TypeSaleRecorded, "shop-1", SaleRecorded{SaleID: "s-1"})
	pub.Close()

	assert.Equal(t, 1, logs.FilterMessage("Failed to publish event").Len())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"), nil)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(context.Background(), TypeSaleRecorded, "shop-1", SaleRecorded{SaleID: "s"})
	r.Publish(context.Background(), TypeStockChanged, "shop-1", StockChanged{})

	assert.Len(t, r.Events(), 2)
	require.Len(t, r.OfType(TypeSaleRecorded), 1)

	var p SaleRecorded
	_, err := Decode(mustEncode(t, r.OfType(TypeSaleRecorded)[0]), &p)
	require.NoError(t, err)
	assert.Equal(t, "s", p.SaleID)
}

func mustEncode(t *testing.T, e Event) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return data
}
