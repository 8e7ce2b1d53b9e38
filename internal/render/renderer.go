// Пакет render рисует бой в терминале: карта цветными глифами, журнал
// боя и полоски здоровья. Рендерер - обычный приемник кадров, поэтому
// одинаково показывает и живой бой, и запись, и трансляцию с сервера.
package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// Options - настройки отрисовки.
type Options struct {
	// Out - куда писать кадры. По умолчанию os.Stdout.
	Out io.Writer
	// Delay - пауза после каждого хода (темп воспроизведения).
	Delay time.Duration
	// Colors включает цветной вывод. Без него кадр - чистый ASCII,
	// пригодный для пайпов и логов.
	Colors bool
	// Clear очищает экран перед каждым кадром (анимация на месте).
	Clear bool
	// LogLines - сколько последних событий держать на экране.
	LogLines int
}

// Renderer превращает кадры боя в текстовые экраны.
type Renderer struct {
	out    io.Writer
	delay  time.Duration
	colors bool
	clear  bool
	logCap int

	header *api.BattleHeader
	base   [][]Glyph
	combat []string

	styles map[uint32]lipgloss.Style
}

var _ engine.Sink = (*Renderer)(nil)

// New создает рендерер с заданными настройками.
func New(opts Options) *Renderer {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.LogLines <= 0 {
		opts.LogLines = 5
	}
	return &Renderer{
		out:    opts.Out,
		delay:  opts.Delay,
		colors: opts.Colors,
		clear:  opts.Clear,
		logCap: opts.LogLines,
		styles: make(map[uint32]lipgloss.Style),
	}
}

// OnBattleStart запоминает ландшафт и печатает шапку боя.
func (r *Renderer) OnBattleStart(h *api.BattleHeader) error {
	r.header = h
	r.combat = nil

	r.base = make([][]Glyph, len(h.Map))
	for y, row := range h.Map {
		line := make([]Glyph, len(row))
		for x := 0; x < len(row); x++ {
			line[x] = tileGlyph(row[x])
		}
		r.base[y] = line
	}

	knights, goblins := 0, 0
	for _, u := range h.Units {
		if u.Faction == domain.FactionKnights.String() {
			knights++
		} else {
			goblins++
		}
	}

	mode := "skirmish"
	if h.GrailMode {
		mode = "grail hunt"
	}

	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintf(r.out, "  GOBLIN TACTICS - seed %d, map %dx%d, %s\n", h.Seed, h.Width, h.Height, mode)
	fmt.Fprintf(r.out, "  %s: %d   %s: %d\n",
		r.paint(colorKnight, "Knights"), knights,
		r.paint(colorHealthy, "Goblins"), goblins)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	return nil
}

// OnDecision игнорируется: решения политики - материал тренера, не экрана.
func (r *Renderer) OnDecision(*api.DecisionView) error { return nil }

// OnTurn печатает кадр хода: карту с юнитами, журнал и полоски здоровья.
func (r *Renderer) OnTurn(f *api.TurnFrame) error {
	if r.header == nil {
		return fmt.Errorf("turn frame %d arrived before battle header", f.Turn)
	}

	if r.clear {
		fmt.Fprint(r.out, "\x1b[2J\x1b[H")
	}

	knights, goblins := 0, 0
	for _, u := range f.Units {
		if !u.Alive {
			continue
		}
		if u.Faction == domain.FactionKnights.String() {
			knights++
		} else {
			goblins++
		}
	}
	fmt.Fprintf(r.out, "\nTurn %d/%d   %s: %d   %s: %d\n\n",
		f.Turn, r.header.MaxTurns,
		r.paint(colorKnight, "Knights"), knights,
		r.paint(colorHealthy, "Goblins"), goblins)

	r.printMap(f)
	r.appendEvents(f)
	r.printCombatLog()
	r.printStats(f)

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return nil
}

// OnBattleEnd печатает итоговый экран.
func (r *Renderer) OnBattleEnd(res *api.BattleResult) error {
	winner := res.Winner
	if winner == "" {
		winner = "DRAW"
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintln(r.out, "  BATTLE COMPLETE!")
	fmt.Fprintf(r.out, "  Winner: %s\n", r.paint(colorCarrier, winner))
	fmt.Fprintf(r.out, "  Turns: %d\n", res.Turns)
	fmt.Fprintf(r.out, "  Knights remaining: %d\n", res.KnightsAlive)
	fmt.Fprintf(r.out, "  Goblins remaining: %d\n", res.GoblinsAlive)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	return nil
}

// printMap печатает ландшафт с наложенными юнитами, артефактом и
// штормовой кромкой.
func (r *Renderer) printMap(f *api.TurnFrame) {
	occupied := make(map[[2]int]Glyph, len(f.Units))
	for _, u := range f.Units {
		if u.Alive {
			occupied[[2]int{u.X, u.Y}] = unitGlyph(u)
		}
	}

	var sb strings.Builder
	for y, row := range r.base {
		sb.Reset()
		for x, tile := range row {
			g := tile
			if r.header.GrailMode && r.header.Grail != nil {
				for _, c := range r.header.Extraction {
					if c.X == x && c.Y == y {
						g = MakeGlyph(colorExtraction, '>')
					}
				}
			}
			if f.Grail != nil && f.Grail.CarrierID < 0 && f.Grail.X == x && f.Grail.Y == y {
				g = MakeGlyph(colorGrail, '*')
			}
			if u, ok := occupied[[2]int{x, y}]; ok {
				g = u
			}
			if f.Storm != nil && f.Storm.Shrinking && !inSafeZone(f.Storm, x, y) {
				g = g.Recolor(colorStorm)
			}
			sb.WriteString(r.renderGlyph(g))
		}
		fmt.Fprintln(r.out, sb.String())
	}
}

func inSafeZone(s *api.StormView, x, y int) bool {
	dx := float64(x - s.CenterX)
	dy := float64(y - s.CenterY)
	return math.Sqrt(dx*dx+dy*dy) <= s.Radius
}

// appendEvents переводит события хода в строки журнала.
func (r *Renderer) appendEvents(f *api.TurnFrame) {
	labels := make(map[int]string, len(f.Units))
	for _, u := range f.Units {
		labels[u.ID] = fmt.Sprintf("%c%d", factionChar(u.Faction), u.ID)
	}

	for _, ev := range f.Events {
		line := formatEvent(ev, labels)
		if line == "" {
			continue
		}
		r.combat = append(r.combat, fmt.Sprintf("[%d] %s", f.Turn, line))
	}
	if len(r.combat) > r.logCap {
		r.combat = r.combat[len(r.combat)-r.logCap:]
	}
}

// formatEvent возвращает человеко-читаемую строку события.
// Разведка не попадает в журнал: слишком шумная.
func formatEvent(ev api.EventView, labels map[int]string) string {
	name := func(id int) string {
		if l, ok := labels[id]; ok {
			return l
		}
		return fmt.Sprintf("unit %d", id)
	}

	switch ev.Type {
	case domain.EventDamage.String():
		return fmt.Sprintf("%s hits %s for %d", name(ev.Actor), name(ev.Target), ev.Value)
	case domain.EventKill.String():
		return fmt.Sprintf("%s slays %s", name(ev.Actor), name(ev.Target))
	case domain.EventDeath.String():
		return fmt.Sprintf("%s dies", name(ev.Actor))
	case domain.EventStorm.String():
		return fmt.Sprintf("%s takes %d storm damage", name(ev.Actor), ev.Value)
	case domain.EventPickup.String():
		return fmt.Sprintf("%s grabs the grail", name(ev.Actor))
	case domain.EventDrop.String():
		return fmt.Sprintf("the grail drops at (%d,%d)", ev.X, ev.Y)
	case domain.EventExtraction.String():
		return fmt.Sprintf("%s escapes with the grail", name(ev.Actor))
	case domain.EventContractViolation.String():
		return fmt.Sprintf("%s breaks the action contract (%d)", name(ev.Actor), ev.Value)
	default:
		return ""
	}
}

func (r *Renderer) printCombatLog() {
	if len(r.combat) == 0 {
		return
	}
	fmt.Fprintln(r.out, "\nRecent combat:")
	for _, line := range r.combat {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
}

// printStats печатает полоски здоровья: всех рыцарей и первую десятку
// гоблинов, остальных - счетчиком.
func (r *Renderer) printStats(f *api.TurnFrame) {
	var knights, goblins []api.UnitView
	for _, u := range f.Units {
		if !u.Alive {
			continue
		}
		if u.Faction == domain.FactionKnights.String() {
			knights = append(knights, u)
		} else {
			goblins = append(goblins, u)
		}
	}

	fmt.Fprintln(r.out, "\nKnights:")
	for _, u := range knights {
		fmt.Fprintf(r.out, "  K%d: %s %d/%d HP\n", u.ID, r.hpBar(u), u.HP, u.MaxHP)
	}

	fmt.Fprintln(r.out, "Goblins:")
	shown := goblins
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, u := range shown {
		fmt.Fprintf(r.out, "  g%d: %s %d/%d HP\n", u.ID, r.hpBar(u), u.HP, u.MaxHP)
	}
	if extra := len(goblins) - len(shown); extra > 0 {
		fmt.Fprintf(r.out, "  ... and %d more goblins\n", extra)
	}
}

// hpBar собирает полоску из 10 делений, окрашенную по остатку здоровья.
func (r *Renderer) hpBar(u api.UnitView) string {
	frac := 0.0
	if u.MaxHP > 0 {
		frac = float64(u.HP) / float64(u.MaxHP)
	}
	filled := int(frac * 10)
	if filled > 10 {
		filled = 10
	}

	bar := r.paint(hpColor(frac), strings.Repeat("█", filled)) +
		r.paint(colorFloor, strings.Repeat("░", 10-filled))
	return "[" + bar + "]"
}

// renderGlyph превращает глиф в готовый к печати фрагмент строки.
func (r *Renderer) renderGlyph(g Glyph) string {
	return r.paint(g.Color(), string([]byte{g.Char()}))
}

// paint окрашивает текст через lipgloss; без цветов возвращает текст
// как есть (стабильный вывод для тестов и пайпов).
func (r *Renderer) paint(colorRGB uint32, text string) string {
	if !r.colors {
		return text
	}
	style, ok := r.styles[colorRGB]
	if !ok {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%06X", colorRGB)))
		r.styles[colorRGB] = style
	}
	return style.Render(text)
}
