package engine

import (
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/sirupsen/logrus"
)

// Sink - потребитель хода боя: рендерер, запись на диск, трансляция.
// Движок вызывает методы строго последовательно: OnBattleStart, далее
// для каждого хода OnDecision* и один OnTurn, в конце OnBattleEnd.
type Sink interface {
	OnBattleStart(h *api.BattleHeader) error
	OnDecision(d *api.DecisionView) error
	OnTurn(f *api.TurnFrame) error
	OnBattleEnd(r *api.BattleResult) error
}

// emitStart рассылает заголовок боя. Ошибка потребителя не прерывает
// симуляцию: упавший рендерер не должен портить обучение.
func (b *Battle) emitStart(h *api.BattleHeader) {
	for _, s := range b.sinks {
		if err := s.OnBattleStart(h); err != nil {
			b.log.WithError(err).Warn("Sink rejected battle header")
		}
	}
}

func (b *Battle) emitDecision(d *api.DecisionView) {
	for _, s := range b.sinks {
		if err := s.OnDecision(d); err != nil {
			b.log.WithError(err).Warn("Sink rejected decision")
		}
	}
}

func (b *Battle) emitTurn(f *api.TurnFrame) {
	for _, s := range b.sinks {
		if err := s.OnTurn(f); err != nil {
			b.log.WithFields(logrus.Fields{
				"turn": f.Turn,
			}).WithError(err).Warn("Sink rejected turn frame")
		}
	}
}

func (b *Battle) emitEnd(r *api.BattleResult) {
	for _, s := range b.sinks {
		if err := s.OnBattleEnd(r); err != nil {
			b.log.WithError(err).Warn("Sink rejected battle result")
		}
	}
}

// NopSink - заглушка для тестов и прогонов без наблюдателей.
type NopSink struct{}

func (NopSink) OnBattleStart(*api.BattleHeader) error { return nil }
func (NopSink) OnDecision(*api.DecisionView) error    { return nil }
func (NopSink) OnTurn(*api.TurnFrame) error           { return nil }
func (NopSink) OnBattleEnd(*api.BattleResult) error   { return nil }

var _ Sink = NopSink{}
