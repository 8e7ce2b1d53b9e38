package network

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

func turnMessage(t *testing.T, turn int) api.ServerMessage {
	t.Helper()
	msg, err := api.NewServerMessage(api.MsgTurn, &api.TurnFrame{Turn: turn})
	require.NoError(t, err)
	return msg
}

func TestBroadcastFansOut(t *testing.T) {
	hub := NewBroadcaster()
	_, ch1 := hub.Register()
	_, ch2 := hub.Register()
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Broadcast(turnMessage(t, 5))

	for _, ch := range []chan api.ServerMessage{ch1, ch2} {
		msg := <-ch
		assert.Equal(t, api.MsgTurn, msg.Type)

		var frame api.TurnFrame
		require.NoError(t, json.Unmarshal(msg.Payload, &frame))
		assert.Equal(t, 5, frame.Turn)
	}
}

func TestLateJoinerGetsHeader(t *testing.T) {
	hub := NewBroadcaster()

	headerMsg, err := api.NewServerMessage(api.MsgHeader, &api.BattleHeader{Seed: 42, Width: 6, Height: 4})
	require.NoError(t, err)
	hub.Broadcast(headerMsg)

	// Подписчик появился после начала боя.
	_, ch := hub.Register()
	require.Len(t, ch, 1)

	msg := <-ch
	assert.Equal(t, api.MsgHeader, msg.Type)

	var h api.BattleHeader
	require.NoError(t, json.Unmarshal(msg.Payload, &h))
	assert.Equal(t, int64(42), h.Seed)
}

func TestSlowSubscriberDropsFrames(t *testing.T) {
	hub := NewBroadcaster()
	_, ch := hub.Register()

	// Канал на 100 кадров: лишние должны молча отбрасываться,
	// а не блокировать рассылку.
	for i := 0; i < 130; i++ {
		hub.Broadcast(turnMessage(t, i))
	}
	assert.Len(t, ch, 100)

	first := <-ch
	var frame api.TurnFrame
	require.NoError(t, json.Unmarshal(first.Payload, &frame))
	assert.Equal(t, 0, frame.Turn, "теряться должен хвост, не начало")
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewBroadcaster()
	id, ch := hub.Register()

	hub.Unregister(id)
	assert.Equal(t, 0, hub.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Повторная отписка - безопасный no-op.
	hub.Unregister(id)

	// Рассылка после отписки не паникует.
	hub.Broadcast(turnMessage(t, 1))
}

func TestFeedTranslatesSinkCalls(t *testing.T) {
	hub := NewBroadcaster()
	_, ch := hub.Register()
	feed := NewFeed(hub)

	require.NoError(t, feed.OnBattleStart(&api.BattleHeader{Seed: 7}))
	require.NoError(t, feed.OnDecision(&api.DecisionView{Turn: 1, UnitID: 3}))
	require.NoError(t, feed.OnTurn(&api.TurnFrame{Turn: 1}))
	require.NoError(t, feed.OnBattleEnd(&api.BattleResult{Outcome: "STALEMATE", Turns: 1}))

	// Решения не транслируются: зритель получает ровно три кадра.
	require.Len(t, ch, 3)
	assert.Equal(t, api.MsgHeader, (<-ch).Type)
	assert.Equal(t, api.MsgTurn, (<-ch).Type)

	result := <-ch
	assert.Equal(t, api.MsgResult, result.Type)

	var r api.BattleResult
	require.NoError(t, json.Unmarshal(result.Payload, &r))
	assert.Equal(t, "STALEMATE", r.Outcome)
}

func TestConcurrentBroadcastAndRegister(t *testing.T) {
	hub := NewBroadcaster()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			msg, _ := api.NewServerMessage(api.MsgTurn, &api.TurnFrame{Turn: i})
			hub.Broadcast(msg)
		}
	}()

	ids := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		id, _ := hub.Register()
		ids = append(ids, id)
	}
	<-done

	for _, id := range ids {
		hub.Unregister(id)
	}
	assert.Equal(t, 0, hub.SubscriberCount())
}

func ExampleBroadcaster() {
	hub := NewBroadcaster()
	_, ch := hub.Register()

	msg, _ := api.NewServerMessage(api.MsgInfo, api.InfoPayload{Text: "battle starts"})
	hub.Broadcast(msg)

	got := <-ch
	fmt.Println(got.Type)
	// Output: INFO
}
