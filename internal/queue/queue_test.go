package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func TestHandleDeliveryDecodesEvent(t *testing.T) {
	body, err := json.Marshal(OrderEvent{Type: EventOrderPlaced, OrderID: "ORD-1", TotalAmountCents: 1700})
	require.NoError(t, err)

	var got OrderEvent
	err = handleDelivery(context.Background(), body, func(ctx context.Context, event OrderEvent) error {
		got = event
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", got.OrderID)
	assert.Equal(t, int64(1700), got.TotalAmountCents)
}

func TestHandleDeliveryRejectsMalformed(t *testing.T) {
	called := false
	handler := func(ctx context.Context, event OrderEvent) error {
		called = true
		return nil
	}

	err := handleDelivery(context.Background(), []byte("not json"), handler)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = handleDelivery(context.Background(), []byte(`{"type":"order.placed"}`), handler)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.False(t, called)
}

func TestSettle(t *testing.T) {
	ok := &fakeAck{}
	settle(ok, false, nil)
	assert.True(t, ok.acked)

	malformed := &fakeAck{}
	settle(malformed, false, ErrMalformedEvent)
	assert.True(t, malformed.nacked)
	assert.False(t, malformed.requeue)

	first := &fakeAck{}
	settle(first, false, errors.New("sms down"))
	assert.True(t, first.nacked)
	assert.True(t, first.requeue)

	second := &fakeAck{}
	settle(second, true, errors.New("sms down"))
	assert.True(t, second.nacked)
	assert.False(t, second.requeue)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), OrderEvent{Type: EventOrderPaid, OrderID: "ORD-1"}))
	assert.NoError(t, p.Close())
}
