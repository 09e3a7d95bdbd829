package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func registerTestClient(svc RealtimeService, userID uint) *realtimeClient {
	impl := svc.(*realtimeService)
	client := &realtimeClient{
		send:    make(chan RealtimeEvent, realtimeSendBufferSize),
		options: RealtimeConnectionOptions{UserID: userID},
		service: impl,
		closed:  make(chan struct{}),
	}
	impl.hub.register(client)
	return client
}

func TestPublishToUserDeliversLocally(t *testing.T) {
	svc := NewRealtimeService(nil, "", nil, testLogger())

	client := registerTestClient(svc, 7)
	other := registerTestClient(svc, 8)

	svc.PublishToUser(context.Background(), 7, EventUserTyping, map[string]interface{}{
		"chat_id": 1,
	})

	select {
	case event := <-client.send:
		require.Equal(t, EventUserTyping, event.Event)
	case <-time.After(time.Second):
		t.Fatal("expected event for user 7")
	}

	select {
	case event := <-other.send:
		t.Fatalf("user 8 received stray event %q", event.Event)
	default:
	}
}

func TestPublishToSlowClientNeverBlocks(t *testing.T) {
	svc := NewRealtimeService(nil, "", nil, testLogger())
	client := registerTestClient(svc, 7)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < realtimeSendBufferSize+5; i++ {
			svc.PublishToUser(context.Background(), 7, EventReceiveMessage, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow client")
	}
	require.Len(t, client.send, realtimeSendBufferSize)
}

func TestPublishReplicatesEnvelopeToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewRealtimeService(client, "helphub:realtime", nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pubsub := client.Subscribe(ctx, "helphub:realtime:events")
	t.Cleanup(func() { _ = pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	svc.PublishToUser(ctx, 42, EventRequestStatusChanged, map[string]interface{}{
		"request_id": 5,
		"status":     "Accepted",
	})

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var envelope realtimeEnvelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	require.Equal(t, uint(42), envelope.UserID)
	require.Equal(t, EventRequestStatusChanged, envelope.Event)
	require.NotEmpty(t, envelope.Source)
	require.JSONEq(t, `{"request_id":5,"status":"Accepted"}`, string(envelope.Data))
}

func TestCrossNodeFanOutSkipsOrigin(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origin := NewRealtimeService(rdb, "helphub:realtime", nil, testLogger())
	peer := NewRealtimeService(rdb, "helphub:realtime", nil, testLogger())
	origin.Start(ctx)
	peer.Start(ctx)

	originClient := registerTestClient(origin, 7)
	peerClient := registerTestClient(peer, 7)

	// Both subscribers need to attach before the publish.
	require.Eventually(t, func() bool {
		channels, err := rdb.PubSubChannels(ctx, "helphub:realtime:events").Result()
		return err == nil && len(channels) > 0
	}, time.Second, 10*time.Millisecond)

	origin.PublishToUser(ctx, 7, EventReceiveMessage, map[string]interface{}{"chat_id": 3})

	select {
	case event := <-peerClient.send:
		require.Equal(t, EventReceiveMessage, event.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("peer node never received the replicated event")
	}

	// The origin delivers once, locally; its own envelope is filtered out.
	<-originClient.send
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, originClient.send)
}
