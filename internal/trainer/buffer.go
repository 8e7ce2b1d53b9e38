package trainer

import "golang.org/x/exp/rand"

// Transition - один переход (s, a, r, s', done) для обучения с опытом.
// Для терминальных переходов Next игнорируется при расчете цели.
type Transition struct {
	State  []float64
	Action int
	Reward float64
	Next   []float64
	Done   bool
}

// ReplayBuffer - кольцевой буфер опыта фиксированной емкости.
// Новые переходы вытесняют самые старые; выборка равномерная.
type ReplayBuffer struct {
	data []Transition
	next int
}

// NewReplayBuffer создает буфер на capacity переходов.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	return &ReplayBuffer{data: make([]Transition, 0, capacity)}
}

// Add кладет переход, при переполнении затирая самый старый.
func (b *ReplayBuffer) Add(t Transition) {
	if len(b.data) < cap(b.data) {
		b.data = append(b.data, t)
		return
	}
	b.data[b.next] = t
	b.next = (b.next + 1) % len(b.data)
}

// Len возвращает число накопленных переходов.
func (b *ReplayBuffer) Len() int { return len(b.data) }

// Sample возвращает равномерную выборку без повторов размером
// min(n, Len()).
func (b *ReplayBuffer) Sample(n int, rng *rand.Rand) []Transition {
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]Transition, n)
	for i, idx := range rng.Perm(len(b.data))[:n] {
		out[i] = b.data[idx]
	}
	return out
}
