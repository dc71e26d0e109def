package events

import (
	"sync"
	"testing"
	"time"

	"pharmapos/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case frame, ok := <-sub.Frames():
		require.True(t, ok, "subscription closed")
		ev, err := Decode(frame)
		require.NoError(t, err)
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func assertNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case frame := <-sub.Frames():
		t.Fatalf("unexpected frame %s", frame)
	default:
	}
}

func TestNotify_ReachesEveryOpenSubscription(t *testing.T) {
	b := NewBroadcaster(4)
	first := b.Subscribe()
	second := b.Subscribe()
	assert.NotEqual(t, first.ID, second.ID)

	b.Notify(TypeProductUpdate, ProductUpdate{Product: domain.Product{ID: 3, Name: "Paracetamol", Stock: 95}})

	for _, sub := range []*Subscription{first, second} {
		ev := receive(t, sub)
		assert.Equal(t, TypeProductUpdate, ev.Type)
		payload, err := ev.ProductUpdate()
		require.NoError(t, err)
		assert.Equal(t, int64(3), payload.Product.ID)
		assert.Equal(t, 95, payload.Product.Stock)
	}
}

func TestNotify_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	b.Notify(TypeProductDeleted, ProductDeleted{ID: 1})

	late := b.Subscribe()
	assertNothing(t, late)

	b.Notify(TypeDataReset, DataReset{Message: "Sales data has been cleared", Type: "sales"})
	ev := receive(t, late)
	reset, err := ev.DataReset()
	require.NoError(t, err)
	assert.Equal(t, "sales", reset.Type)
}

func TestNotify_ClosedSubscriptionGetsNothing(t *testing.T) {
	b := NewBroadcaster(4)
	sub := b.Subscribe()
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Len())
	b.Notify(TypeProductDeleted, ProductDeleted{ID: 2})

	_, ok := <-sub.Frames()
	assert.False(t, ok)
}

func TestNotify_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster(1)
	slow := b.Subscribe()
	fast := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			b.Notify(TypeProductDeleted, ProductDeleted{ID: int64(i)})
			<-fast.Frames()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}

	ev := receive(t, slow)
	deleted, err := ev.ProductDeleted()
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted.ID)
	assertNothing(t, slow)
}

func TestClose_EndsSubscriptions(t *testing.T) {
	b := NewBroadcaster(2)
	sub := b.Subscribe()

	b.Close()
	b.Close()
	sub.Close()

	_, ok := <-sub.Frames()
	assert.False(t, ok)

	after := b.Subscribe()
	_, ok = <-after.Frames()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentSubscribeNotifyClose(t *testing.T) {
	b := NewBroadcaster(8)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := b.Subscribe()
			b.Notify(TypeProductDeleted, ProductDeleted{ID: int64(i)})
			sub.Close()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, b.Len())
}

func TestEventAccessorRejectsWrongType(t *testing.T) {
	frame, err := encode(TypeProductDeleted, ProductDeleted{ID: 9})
	require.NoError(t, err)
	ev, err := Decode(frame)
	require.NoError(t, err)

	_, err = ev.ProductUpdate()
	assert.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)
}
