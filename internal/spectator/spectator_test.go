package spectator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/network"
	"github.com/mikkokallio/goblin-tactics/internal/server"
	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

func sampleHeader(seed int64) *api.BattleHeader {
	return &api.BattleHeader{
		SchemaVersion: 3,
		Seed:          seed,
		Width:         5,
		Height:        3,
		Map:           []string{"#####", "#...#", "#####"},
		Units: []api.UnitView{
			{ID: 1, Faction: "KNIGHTS", X: 1, Y: 1, HP: 30, MaxHP: 30, Alive: true},
			{ID: 2, Faction: "GOBLINS", X: 3, Y: 1, HP: 14, MaxHP: 14, Alive: true},
		},
		MaxTurns: 40,
	}
}

// recordBattle пишет в хранилище запись с заданным зерном и числом ходов.
func recordBattle(t *testing.T, store *storage.Store, seed int64, turns int) {
	t.Helper()

	w, err := store.NewWriter()
	require.NoError(t, err)

	require.NoError(t, w.OnBattleStart(sampleHeader(seed)))
	for i := 1; i <= turns; i++ {
		frame := &api.TurnFrame{
			Turn: i,
			Units: []api.UnitView{
				{ID: 1, Faction: "KNIGHTS", X: 1 + i%2, Y: 1, HP: 30, MaxHP: 30, Alive: true},
			},
		}
		require.NoError(t, w.OnTurn(frame))
	}
	require.NoError(t, w.OnBattleEnd(&api.BattleResult{Outcome: "STALEMATE", Turns: turns, Seed: seed}))
	require.NoError(t, w.Close())
}

// newTestServer поднимает сервер трансляции поверх httptest.
func newTestServer(t *testing.T, seeds ...int64) (*httptest.Server, *network.Broadcaster) {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	for _, seed := range seeds {
		recordBattle(t, store, seed, 3)
	}

	hub := network.NewBroadcaster()
	srv := server.New(config.ServerSettings{Addr: ":0", TurnDelay: time.Millisecond}, hub, store)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWatchReplayDrivesSink(t *testing.T) {
	ts, _ := newTestServer(t, 7)

	rec := &storage.Recording{}
	c := New(ts.URL, rec)

	require.NoError(t, c.WatchReplay(testContext(t), "battle_00000.gtrp"))

	require.NotNil(t, rec.Header)
	assert.Equal(t, int64(7), rec.Header.Seed)
	require.Len(t, rec.Turns, 3)
	for i, frame := range rec.Turns {
		assert.Equal(t, i+1, frame.Turn)
	}
	require.NotNil(t, rec.Result)
	assert.Equal(t, "STALEMATE", rec.Result.Outcome)
}

func TestWatchReplayDefaultsToLatest(t *testing.T) {
	ts, _ := newTestServer(t, 7, 99)

	rec := &storage.Recording{}
	c := New(ts.URL, rec)

	require.NoError(t, c.WatchReplay(testContext(t), ""))

	require.NotNil(t, rec.Header)
	assert.Equal(t, int64(99), rec.Header.Seed)
}

func TestWatchReplayMissingBattle(t *testing.T) {
	ts, _ := newTestServer(t, 7)

	c := New(ts.URL, &storage.Recording{})
	err := c.WatchReplay(testContext(t), "battle_99999.gtrp")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}

// resultSink сигналит о приходе итогового кадра: живой просмотр не
// завершается сам, и тесту нужна точка синхронизации перед отменой.
type resultSink struct {
	*storage.Recording
	done chan struct{}
}

func (s *resultSink) OnBattleEnd(r *api.BattleResult) error {
	err := s.Recording.OnBattleEnd(r)
	close(s.done)
	return err
}

func TestWatchLiveBroadcast(t *testing.T) {
	ts, hub := newTestServer(t)

	sink := &resultSink{Recording: &storage.Recording{}, done: make(chan struct{})}
	c := New(ts.URL, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Watch(ctx) }()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond, "spectator never subscribed")

	feed := network.NewFeed(hub)
	require.NoError(t, feed.OnBattleStart(sampleHeader(42)))
	require.NoError(t, feed.OnTurn(&api.TurnFrame{Turn: 1}))
	require.NoError(t, feed.OnBattleEnd(&api.BattleResult{Outcome: "KNIGHTS_WIN", Winner: "KNIGHTS", Turns: 1}))

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("result frame never arrived")
	}

	// Живой просмотр продолжается и после итога - останавливаем сами.
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	require.NotNil(t, sink.Header)
	assert.Equal(t, int64(42), sink.Header.Seed)
	require.Len(t, sink.Turns, 1)
	assert.Equal(t, "KNIGHTS", sink.Result.Winner)
}

func TestListBattles(t *testing.T) {
	ts, _ := newTestServer(t, 1, 2, 3)

	c := New(ts.URL, &storage.Recording{})
	names, err := c.ListBattles(testContext(t))

	require.NoError(t, err)
	assert.Equal(t, []string{"battle_00000.gtrp", "battle_00001.gtrp", "battle_00002.gtrp"}, names)
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"localhost:8080":         "ws://localhost:8080/ws",
		"http://host:9090":       "ws://host:9090/ws",
		"https://host":           "wss://host/ws",
		"ws://host:8080/ws":      "ws://host:8080/ws",
		"wss://host/custom/path": "wss://host/custom/path",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}
