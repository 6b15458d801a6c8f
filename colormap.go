package ijtiff

import (
	"fmt"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// gradient is a continuous palette defined by evenly spaced anchor
// colors, blended in linear RGB.
type gradient []colorful.Color

func (g gradient) at(x float64) colorful.Color {
	if x <= 0 {
		return g[0]
	}
	if x >= 1 {
		return g[len(g)-1]
	}
	pos := x * float64(len(g)-1)
	i := int(pos)
	return g[i].BlendLinearRgb(g[i+1], pos-float64(i))
}

func (g gradient) lut() LUT {
	var l LUT
	for i := 0; i < 256; i++ {
		r, gr, b := g.at(float64(i) / 255).Clamped().RGB255()
		l[0][i] = r
		l[1][i] = gr
		l[2][i] = b
	}
	return l
}

func hexGradient(hexes ...string) gradient {
	g := make(gradient, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("colormap anchor %q: %v", h, err))
		}
		g[i] = c
	}
	return g
}

// Anchor colors sampled from the matplotlib perceptually uniform maps.
var colormaps = map[string]gradient{
	"viridis": hexGradient("#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"),
	"magma":   hexGradient("#000004", "#51127c", "#b73779", "#fc8961", "#fcfdbf"),
	"inferno": hexGradient("#000004", "#57106e", "#bc3754", "#f98e09", "#fcffa4"),
	"plasma":  hexGradient("#0d0887", "#7e03a8", "#cc4778", "#f89540", "#f0f921"),
	"cool":    hexGradient("#00ffff", "#ff00ff"),
	"spring":  hexGradient("#ff00ff", "#ffff00"),
}

var formulaMaps = map[string]func() LUT{
	"hot":     hotLUT,
	"jet":     jetLUT,
	"rainbow": jetLUT,
}

func hotLUT() LUT {
	var l LUT
	for i := 0; i < 256; i++ {
		l[0][i] = clampByte(3 * i)
		l[1][i] = clampByte(3 * (i - 85))
		l[2][i] = clampByte(3 * (i - 170))
	}
	return l
}

// jetLUT follows the classic blue-cyan-yellow-red piecewise ramp.
func jetLUT() LUT {
	var l LUT
	for i := 0; i < 256; i++ {
		x := float64(i) / 255
		l[0][i] = jetChannel(x - 0.25)
		l[1][i] = jetChannel(x)
		l[2][i] = jetChannel(x + 0.25)
	}
	return l
}

func jetChannel(x float64) uint8 {
	v := 1.5 - 4*abs(x-0.5)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func colormapLUT(name string) (LUT, error) {
	if g, ok := colormaps[name]; ok {
		return g.lut(), nil
	}
	if f, ok := formulaMaps[name]; ok {
		return f(), nil
	}
	return LUT{}, fmt.Errorf("unknown colormap %q", name)
}

func colormapNames() []string {
	var names []string
	for name := range colormaps {
		names = append(names, name)
	}
	for name := range formulaMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
