package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)

	return svc, mr
}

func TestNewService(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	assert.NotNil(t, svc.Client())
	assert.NotEmpty(t, svc.InstanceID())
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestPublishSubscribeRelaysAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	publisher, err := NewService(mr.Addr(), "")
	require.NoError(t, err)
	defer func() { _ = publisher.Close() }()

	subscriber, err := NewService(mr.Addr(), "")
	require.NoError(t, err)
	defer func() { _ = subscriber.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	received := make(chan []byte, 1)
	subscriber.Subscribe(ctx, "room-1", &wg, func(frame []byte) {
		received <- frame
	})

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, publisher.Publish(context.Background(), "room-1", []byte(`{"type":"seek_sync"}`)))

	select {
	case frame := <-received:
		assert.JSONEq(t, `{"type":"seek_sync"}`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed frame")
	}

	cancel()
	wg.Wait()
}

func TestSubscribeDropsOwnPublish(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	received := make(chan []byte, 1)
	svc.Subscribe(ctx, "room-2", &wg, func(frame []byte) {
		received <- frame
	})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, svc.Publish(context.Background(), "room-2", []byte(`{"type":"ping"}`)))

	select {
	case <-received:
		t.Fatal("expected own publish to be dropped, not relayed back")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	wg.Wait()
}

func TestPingFailsWhenRedisDown(t *testing.T) {
	svc, mr := newTestService(t)
	mr.Close()

	err := svc.Ping(context.Background())
	assert.Error(t, err)
}

func TestPublishDegradesGracefullyWhenCircuitOpen(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	mr.Close()

	for i := 0; i < 10; i++ {
		_ = svc.Publish(context.Background(), "room-3", []byte(`{}`))
	}

	err := svc.Publish(context.Background(), "room-3", []byte(`{}`))
	assert.NoError(t, err)
}

func TestNilServiceIsInert(t *testing.T) {
	var svc *Service

	assert.Nil(t, svc.Client())
	assert.Empty(t, svc.InstanceID())
	assert.NoError(t, svc.Publish(context.Background(), "room", []byte(`{}`)))
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())

	svc.Subscribe(context.Background(), "room", nil, func([]byte) {
		t.Fatal("handler should never be invoked for a nil service")
	})
}
