package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// glyphs holds a 3-row block rendering for digits and the colon.
var glyphs = map[rune][3]string{
	'0': {"█▀█", "█ █", "▀▀▀"},
	'1': {"▄█ ", " █ ", "▀▀▀"},
	'2': {"▀▀█", "█▀▀", "▀▀▀"},
	'3': {"▀▀█", " ▀█", "▀▀▀"},
	'4': {"█ █", "▀▀█", "  ▀"},
	'5': {"█▀▀", "▀▀█", "▀▀▀"},
	'6': {"█▀▀", "█▀█", "▀▀▀"},
	'7': {"▀▀█", "  █", "  ▀"},
	'8': {"█▀█", "█▀█", "▀▀▀"},
	'9': {"█▀█", "▀▀█", "▀▀▀"},
	':': {" ", "▀", "▀"},
}

// minBigWidth is the narrowest terminal that gets the block rendering.
const minBigWidth = 40

// renderBigClock renders a clock string such as "1:05:09" in block
// glyphs. Narrow terminals get a single bold line.
func renderBigClock(clock string, color lipgloss.Color, width int) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(color)
	if width < minBigWidth {
		return style.Render(clock)
	}

	var rows [3][]string
	for _, ch := range clock {
		g, ok := glyphs[ch]
		if !ok {
			continue
		}
		for i := range rows {
			rows[i] = append(rows[i], g[i])
		}
	}

	out := make([]string, len(rows))
	for i, parts := range rows {
		out[i] = style.Render(strings.Join(parts, " "))
	}
	return strings.Join(out, "\n")
}
