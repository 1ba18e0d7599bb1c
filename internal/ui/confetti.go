package ui

import (
	"math/rand"
	"strings"

	lipgloss "charm.land/lipgloss/v2"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/x/ansi"
)

const (
	confettiFPS      = 30
	confettiFrames   = 90
	confettiDensity  = 70
	confettiSpread   = 14.0
	confettiFallRate = 6.0
)

var (
	confettiGlyphs      = []rune{'█', '▓', '▒', '░', '▀', '▄'}
	confettiGlyphsASCII = []rune{'*', '+', 'o', '.', 'x'}
)

type confettiParticle struct {
	physics *harmonica.Projectile
	char    rune
	style   lipgloss.Style
}

// confetti is a short fire-and-forget celebration effect layered over
// the rendered frame.
type confetti struct {
	particles []*confettiParticle
	frames    int
	cols      int
	rows      int
}

func newConfetti(cols, rows int, ascii bool, theme Theme) *confetti {
	if cols < 4 || rows < 4 {
		return nil
	}
	glyphs := confettiGlyphs
	if ascii {
		glyphs = confettiGlyphsASCII
	}
	styles := []lipgloss.Style{theme.Pass, theme.Fail, theme.Pending, theme.Accent, theme.Info}
	c := &confetti{cols: cols, rows: rows}
	for i := 0; i < confettiDensity; i++ {
		x := rand.Float64() * float64(cols)
		vx := (rand.Float64() - 0.5) * confettiSpread
		vy := rand.Float64() * confettiFallRate
		c.particles = append(c.particles, &confettiParticle{
			physics: harmonica.NewProjectile(
				harmonica.FPS(confettiFPS),
				harmonica.Point{X: x, Y: float64(-rand.Intn(rows / 2))},
				harmonica.Vector{X: vx, Y: vy},
				harmonica.TerminalGravity,
			),
			char:  glyphs[rand.Intn(len(glyphs))],
			style: styles[rand.Intn(len(styles))],
		})
	}
	return c
}

// update advances one frame and reports whether the effect is still
// visible.
func (c *confetti) update() bool {
	if c == nil {
		return false
	}
	c.frames++
	if c.frames > confettiFrames {
		return false
	}
	alive := false
	for _, p := range c.particles {
		pos := p.physics.Update()
		if pos.Y < float64(c.rows) {
			alive = true
		}
	}
	return alive
}

// paint overlays particle glyphs onto the rendered frame. It runs after
// all other composition so the particles keep their colors.
func (c *confetti) paint(base string, cols, rows int) string {
	if c == nil || cols <= 0 || rows <= 0 {
		return base
	}
	byRow := map[int]map[int]*confettiParticle{}
	for _, p := range c.particles {
		pos := p.physics.Position()
		x, y := int(pos.X), int(pos.Y)
		if x < 0 || x >= cols || y < 0 || y >= rows {
			continue
		}
		row, ok := byRow[y]
		if !ok {
			row = map[int]*confettiParticle{}
			byRow[y] = row
		}
		row[x] = p
	}
	if len(byRow) == 0 {
		return base
	}

	lines := strings.Split(base, "\n")
	for y, row := range byRow {
		if y >= len(lines) {
			continue
		}
		src := []rune(ansi.Strip(lines[y]))
		for len(src) < cols {
			src = append(src, ' ')
		}
		var b strings.Builder
		for x := 0; x < cols && x < len(src); x++ {
			if p, ok := row[x]; ok {
				b.WriteString(p.style.Render(string(p.char)))
			} else {
				b.WriteRune(src[x])
			}
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}
