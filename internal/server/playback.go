package server

import (
	"fmt"
	"time"

	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// --- Команды протокола воспроизведения ---

// handleWatch загружает запись и начинает её воспроизведение,
// отключив клиента от живой трансляции.
func handleWatch(c *Client, p api.WatchPayload) error {
	if c.srv.store == nil {
		return fmt.Errorf("no battle records available")
	}

	name := p.Battle
	if name == "" {
		name = c.srv.defaultBattle
	}
	if name == "" {
		latest, err := c.srv.store.Latest()
		if err != nil {
			return err
		}
		name = latest
	}

	rec, err := c.srv.store.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load battle %s: %w", name, err)
	}
	if rec.Header == nil {
		return fmt.Errorf("battle %s has no header", name)
	}

	c.stopWatching()
	c.sendInfo(fmt.Sprintf("watching %s: %d turns", name, len(rec.Turns)))

	c.play = newPlayback(rec, c.srv.turnDelay, c.send)
	go c.play.run()
	return nil
}

func handlePause(c *Client) error { return c.playCommand(api.ActionPause, 0) }

func handleResume(c *Client) error { return c.playCommand(api.ActionResume, 0) }

func handleStep(c *Client, p api.StepPayload) error {
	n := p.Turns
	if n == 0 {
		n = 1
	}
	return c.playCommand(api.ActionStep, n)
}

func handleSeek(c *Client, p api.SeekPayload) error {
	return c.playCommand(api.ActionSeek, p.Turn)
}

func handleList(c *Client) error {
	if c.srv.store == nil {
		return fmt.Errorf("no battle records available")
	}
	names, err := c.srv.store.List()
	if err != nil {
		return fmt.Errorf("failed to list battles: %w", err)
	}

	msg, err := api.NewServerMessage(api.MsgList, api.ListPayload{Battles: names})
	if err != nil {
		return err
	}
	c.trySend(msg)
	return nil
}

// playCommand передает команду активному воспроизведению.
func (c *Client) playCommand(action string, n int) error {
	if c.play == nil {
		return fmt.Errorf("%s requires an active replay, send WATCH first", action)
	}
	c.play.command(action, n)
	return nil
}

// --- Воспроизведение ---

type playbackCmd struct {
	action string
	n      int
}

// playback - воспроизведение одной записи для одного зрителя. Всем
// состоянием владеет горутина run: снаружи приходят только команды
// через cmds и сигнал завершения через done.
type playback struct {
	rec   *storage.Recording
	delay time.Duration
	out   chan<- api.ServerMessage

	cmds chan playbackCmd
	done chan struct{}

	pos      int
	paused   bool
	finished bool
}

func newPlayback(rec *storage.Recording, delay time.Duration, out chan<- api.ServerMessage) *playback {
	return &playback{
		rec:   rec,
		delay: delay,
		out:   out,
		cmds:  make(chan playbackCmd, 8),
		done:  make(chan struct{}),
	}
}

// stop обрывает воспроизведение. Вызывается ровно один раз.
func (p *playback) stop() { close(p.done) }

// command передает команду горутине воспроизведения.
func (p *playback) command(action string, n int) {
	select {
	case p.cmds <- playbackCmd{action: action, n: n}:
	case <-p.done:
	}
}

func (p *playback) run() {
	// Заголовок уходит сразу: без него зрителю нечем рисовать.
	if !p.emit(api.MsgHeader, p.rec.Header) {
		return
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	for {
		select {
		case <-p.done:
			return

		case cmd := <-p.cmds:
			p.apply(cmd)
			if !p.paused && !p.finished {
				timer.Reset(p.delay)
			}

		case <-timer.C:
			if p.paused {
				continue
			}
			if p.next() {
				timer.Reset(p.delay)
			}
			// Играть больше нечего - таймер не взводим, оживят команды.
		}
	}
}

func (p *playback) apply(cmd playbackCmd) {
	switch cmd.action {
	case api.ActionPause:
		p.paused = true

	case api.ActionResume:
		p.paused = false

	case api.ActionStep:
		// Шаг всегда останавливает воспроизведение: смысл команды -
		// покадровый просмотр.
		p.paused = true
		for i := 0; i < cmd.n; i++ {
			if !p.next() {
				break
			}
		}

	case api.ActionSeek:
		p.seek(cmd.n)
	}
}

// next отправляет следующий кадр записи; false - играть больше нечего.
func (p *playback) next() bool {
	if p.pos >= len(p.rec.Turns) {
		p.finish()
		return false
	}

	if !p.emit(api.MsgTurn, p.rec.Turns[p.pos]) {
		return false
	}
	p.pos++

	if p.pos >= len(p.rec.Turns) {
		p.finish()
		return false
	}
	return true
}

// finish отправляет итог боя, один раз за проигрывание.
func (p *playback) finish() {
	if p.finished {
		return
	}
	p.finished = true
	if p.rec.Result != nil {
		p.emit(api.MsgResult, p.rec.Result)
	}
}

// seek перематывает на ход turn: его кадр уходит немедленно, дальше
// воспроизведение продолжается оттуда. Ноль возвращает к заголовку.
func (p *playback) seek(turn int) {
	p.finished = false

	if turn <= 0 || len(p.rec.Turns) == 0 {
		p.pos = 0
		p.emit(api.MsgHeader, p.rec.Header)
		return
	}

	idx := turn - 1
	if idx >= len(p.rec.Turns) {
		idx = len(p.rec.Turns) - 1
	}
	if p.emit(api.MsgTurn, p.rec.Turns[idx]) {
		p.pos = idx + 1
	}
}

// emit ставит кадр в очередь клиента. Полная очередь блокирует:
// запись, в отличие от живого боя, играется без потерь.
func (p *playback) emit(msgType string, payload interface{}) bool {
	msg, err := api.NewServerMessage(msgType, payload)
	if err != nil {
		return false
	}
	select {
	case p.out <- msg:
		return true
	case <-p.done:
		return false
	}
}
