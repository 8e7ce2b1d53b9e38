package render

import (
	"fmt"

	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// Glyph - упакованный цветной символ клетки. Использует 32 бита:
//
//	[0:8]  - символ (8 бит) - маска 0xFF
//	[8:32] - RGB-цвет (24 бита) - маска 0xFFFFFF
//
// Кадр боя - это просто матрица Glyph: дешево копируется, сравнивается
// одним словом и не тянет за собой строк до самого момента вывода.
type Glyph uint32

const (
	bitsChar  = 8
	bitsColor = 24

	shiftColor = bitsChar

	maskChar  = (1 << bitsChar) - 1
	maskColor = (1 << bitsColor) - 1
)

// MakeGlyph упаковывает RGB-цвет (0xRRGGBB, старшие биты отбрасываются)
// и ASCII-символ в один Glyph.
func MakeGlyph(colorRGB uint32, char byte) Glyph {
	return Glyph((colorRGB&maskColor)<<shiftColor | (uint32(char) & maskChar))
}

// Color извлекает 24-битный RGB-цвет.
func (g Glyph) Color() uint32 {
	return uint32(g>>shiftColor) & maskColor
}

// Char извлекает символ.
func (g Glyph) Char() byte {
	return byte(g & maskChar)
}

// Recolor возвращает глиф с тем же символом и другим цветом.
func (g Glyph) Recolor(colorRGB uint32) Glyph {
	return MakeGlyph(colorRGB, g.Char())
}

// HexColor возвращает цвет строкой вида "#00FF00" (формат lipgloss).
func (g Glyph) HexColor() string {
	return fmt.Sprintf("#%06X", g.Color())
}

// String реализует fmt.Stringer: "Glyph{char='K', color=#00C8C8}".
func (g Glyph) String() string {
	char := g.Char()
	charStr := string([]byte{char})
	if char < 32 || char > 126 {
		charStr = fmt.Sprintf("\\x%02X", char)
	}
	return fmt.Sprintf("Glyph{char='%s', color=#%06X}", charStr, g.Color())
}

// Палитра боя.
const (
	colorWall      = 0xB0B0B0
	colorFloor     = 0x555555
	colorDifficult = 0xC8A000

	colorKnight   = 0x00C8C8
	colorCarrier  = 0xFFD700
	colorHealthy  = 0x00C800
	colorHurt     = 0xC8C800
	colorCritical = 0xC80000

	colorGrail      = 0xFFD700
	colorExtraction = 0x00AAFF
	colorStorm      = 0x8800AA
)

// tileGlyph переводит символ ландшафта из кадра-заголовка в глиф.
// Неизвестные символы рисуются как стена: лучше глухой кадр, чем паника
// на записи из будущей версии.
func tileGlyph(ch byte) Glyph {
	switch ch {
	case '.':
		return MakeGlyph(colorFloor, '.')
	case '~':
		return MakeGlyph(colorDifficult, '~')
	default:
		return MakeGlyph(colorWall, '#')
	}
}

// hpColor возвращает цвет по доле здоровья: выше 70% зеленый,
// выше 30% желтый, дальше красный.
func hpColor(frac float64) uint32 {
	switch {
	case frac > 0.7:
		return colorHealthy
	case frac > 0.3:
		return colorHurt
	default:
		return colorCritical
	}
}

// unitGlyph возвращает глиф юнита: рыцари - голубая 'K', гоблины -
// 'g' с цветом по остатку здоровья. Носильщик артефакта подсвечен
// золотым независимо от фракции.
func unitGlyph(u api.UnitView) Glyph {
	if u.CarryingGrail {
		return MakeGlyph(colorCarrier, factionChar(u.Faction))
	}
	if u.Faction == "KNIGHTS" {
		return MakeGlyph(colorKnight, 'K')
	}
	frac := 0.0
	if u.MaxHP > 0 {
		frac = float64(u.HP) / float64(u.MaxHP)
	}
	return MakeGlyph(hpColor(frac), 'g')
}

func factionChar(faction string) byte {
	if faction == "KNIGHTS" {
		return 'K'
	}
	return 'g'
}
