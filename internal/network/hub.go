// Пакет network раздаёт кадры боя зрителям: хаб с личными буферными
// каналами подписчиков и Sink-адаптер, который кормит хаб из движка.
package network

import (
	"sync"

	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// Broadcaster занимается только рассылкой сообщений подписчикам.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	// Мапа: ID подписчика -> личный канал
	subscribers map[int]chan api.ServerMessage

	// header - последний разосланный заголовок боя. Подписчик,
	// подключившийся посреди трансляции, получает его первым кадром,
	// иначе ему нечем отрисовать карту.
	header *api.ServerMessage
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int]chan api.ServerMessage),
	}
}

// Register создает личный канал подписчика и возвращает его ID.
func (b *Broadcaster) Register() (int, chan api.ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan api.ServerMessage, 100)
	if b.header != nil {
		ch <- *b.header
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unregister удаляет подписчика и закрывает его канал.
func (b *Broadcaster) Unregister(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Broadcast отправляет кадр всем подписчикам. Переполненный канал
// кадр теряет: медленный зритель не должен тормозить симуляцию.
func (b *Broadcaster) Broadcast(msg api.ServerMessage) {
	if msg.Type == api.MsgHeader {
		b.mu.Lock()
		b.header = &msg
		b.mu.Unlock()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount возвращает количество активных подписчиков.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Feed - Sink движка, транслирующий живой бой через хаб. Решения
// политики зрителям не рассылаются: для отрисовки они не нужны, а
// вектор признаков тяжёлый.
type Feed struct {
	hub *Broadcaster
}

var _ engine.Sink = (*Feed)(nil)

func NewFeed(hub *Broadcaster) *Feed { return &Feed{hub: hub} }

func (f *Feed) OnBattleStart(h *api.BattleHeader) error { return f.send(api.MsgHeader, h) }

func (f *Feed) OnDecision(*api.DecisionView) error { return nil }

func (f *Feed) OnTurn(fr *api.TurnFrame) error { return f.send(api.MsgTurn, fr) }

func (f *Feed) OnBattleEnd(r *api.BattleResult) error { return f.send(api.MsgResult, r) }

func (f *Feed) send(msgType string, payload interface{}) error {
	msg, err := api.NewServerMessage(msgType, payload)
	if err != nil {
		return err
	}
	f.hub.Broadcast(msg)
	return nil
}
