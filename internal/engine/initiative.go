package engine

import (
	"container/heap"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// initiativeItem обертка для элемента очереди приоритетов
type initiativeItem struct {
	Unit  *domain.Unit
	Index int // Индекс в куче (нужен для heap.Fix)
}

// initiativeQueue реализует heap.Interface. Первым ходит юнит с большей
// скоростью; при равной скорости - с меньшим ID. Рыцари (скорость 5)
// всегда действуют раньше гоблинов (скорость 4).
type initiativeQueue []*initiativeItem

func (pq initiativeQueue) Len() int { return len(pq) }

func (pq initiativeQueue) Less(i, j int) bool {
	a, b := pq[i].Unit, pq[j].Unit
	if a.Speed != b.Speed {
		return a.Speed > b.Speed
	}
	return a.ID < b.ID
}

func (pq initiativeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *initiativeQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*initiativeItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *initiativeQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // избегаем утечки памяти
	item.Index = -1 // для безопасности
	*pq = old[0 : n-1]
	return item
}

// InitiativeOrder возвращает живых юнитов в порядке хода. Порядок
// фиксируется в начале хода: юнит, погибший до своей очереди, просто
// пропускается при исполнении.
func InitiativeOrder(units []*domain.Unit) []*domain.Unit {
	pq := make(initiativeQueue, 0, len(units))
	for _, u := range units {
		if u.Alive {
			pq = append(pq, &initiativeItem{Unit: u})
		}
	}
	heap.Init(&pq)

	ordered := make([]*domain.Unit, 0, pq.Len())
	for pq.Len() > 0 {
		item := heap.Pop(&pq).(*initiativeItem)
		ordered = append(ordered, item.Unit)
	}
	return ordered
}
