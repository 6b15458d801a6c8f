package ijtiff

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// A LUT is a look-up table of 256 RGB triples, stored channel-planar:
// index 0 is red, 1 green, 2 blue.
type LUT [3][256]uint8

// RGB returns the color of LUT entry i.
func (l LUT) RGB(i int) (r, g, b uint8) {
	return l[0][i], l[1][i], l[2][i]
}

// Text renders the LUT in the Fiji text format, one "r g b" line per entry.
func (l LUT) Text() []byte {
	var buf bytes.Buffer
	for i := 0; i < 256; i++ {
		fmt.Fprintf(&buf, "%d %d %d\n", l[0][i], l[1][i], l[2][i])
	}
	return buf.Bytes()
}

// RampLUT builds a black-to-color ramp for the given RGB endpoint.
func RampLUT(r, g, b uint8) LUT {
	var l LUT
	for i := 0; i < 256; i++ {
		l[0][i] = uint8(int(r) * i / 255)
		l[1][i] = uint8(int(g) * i / 255)
		l[2][i] = uint8(int(b) * i / 255)
	}
	return l
}

func channelRamp(red, green, blue bool) LUT {
	var l LUT
	for i := 0; i < 256; i++ {
		if red {
			l[0][i] = uint8(i)
		}
		if green {
			l[1][i] = uint8(i)
		}
		if blue {
			l[2][i] = uint8(i)
		}
	}
	return l
}

var builtinRamps = map[string]LUT{
	"red":     channelRamp(true, false, false),
	"green":   channelRamp(false, true, false),
	"blue":    channelRamp(false, false, true),
	"yellow":  channelRamp(true, true, false),
	"magenta": channelRamp(true, false, true),
	"cyan":    channelRamp(false, true, true),
	"gray":    channelRamp(true, true, true),
	"grey":    channelRamp(true, true, true),
}

//go:embed luts
var lutFiles embed.FS

// fijiLUTs holds the LUTs shipped with the package, keyed by file basename.
var fijiLUTs = loadEmbeddedLUTs()

func loadEmbeddedLUTs() map[string]LUT {
	entries, err := lutFiles.ReadDir("luts")
	if err != nil {
		panic(fmt.Sprintf("embedded luts: %v", err))
	}
	m := make(map[string]LUT, len(entries))
	for _, e := range entries {
		data, err := lutFiles.ReadFile("luts/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("embedded luts: %v", err))
		}
		lut, err := ParseLUT(data)
		if err != nil {
			panic(fmt.Sprintf("embedded lut %s: %v", e.Name(), err))
		}
		m[strings.TrimSuffix(e.Name(), ".lut")] = lut
	}
	return m
}

// ParseLUT reads a .lut payload, either the Fiji text format (256 lines
// of "r g b") or the raw ImageJ binary format (768 bytes, channel-planar).
func ParseLUT(data []byte) (LUT, error) {
	var l LUT
	if len(data) == 768 && !isTextLUT(data) {
		for i := 0; i < 256; i++ {
			l[0][i] = data[i]
			l[1][i] = data[256+i]
			l[2][i] = data[512+i]
		}
		return l, nil
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if n >= 256 {
			return LUT{}, fmt.Errorf("lut has more than 256 entries")
		}
		var r, g, b int
		if _, err := fmt.Sscanf(line, "%d %d %d", &r, &g, &b); err != nil {
			return LUT{}, fmt.Errorf("lut line %d: %w", n+1, err)
		}
		if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 {
			return LUT{}, fmt.Errorf("lut line %d: value out of range", n+1)
		}
		l[0][n] = uint8(r)
		l[1][n] = uint8(g)
		l[2][n] = uint8(b)
		n++
	}
	if err := sc.Err(); err != nil {
		return LUT{}, err
	}
	if n != 256 {
		return LUT{}, fmt.Errorf("lut has %d entries, want 256", n)
	}
	return l, nil
}

func isTextLUT(data []byte) bool {
	for _, c := range data {
		if c >= '0' && c <= '9' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return false
	}
	return true
}

// LUTNames lists every identifier ResolveLUT recognizes by name.
func LUTNames() []string {
	var names []string
	for name := range builtinRamps {
		names = append(names, name)
	}
	for name := range fijiLUTs {
		names = append(names, name)
	}
	names = append(names, colormapNames()...)
	sort.Strings(names)
	return names
}

// ResolveLUT turns a LUT identifier into a 256-entry ramp. Identifiers
// are tried as a built-in channel ramp, a shipped Fiji LUT, a named
// colormap, a "#rrggbb" hex color, an "rgb(r,g,b)" tuple, and a path to
// a .lut file, in that order. A near-miss name (edit distance <= 2 to a
// known name) resolves to its closest match.
func ResolveLUT(id string) (LUT, error) {
	if lut, ok := lookupLUT(id); ok {
		return lut, nil
	}
	if strings.HasPrefix(id, "#") {
		c, err := colorful.Hex(id)
		if err != nil {
			return LUT{}, fmt.Errorf("lut %q: %w", id, err)
		}
		r, g, b := c.RGB255()
		return RampLUT(r, g, b), nil
	}
	if strings.HasPrefix(strings.ToLower(id), "rgb(") {
		var r, g, b int
		if _, err := fmt.Sscanf(strings.ToLower(id), "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
			return LUT{}, fmt.Errorf("lut %q: %w", id, err)
		}
		if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 {
			return LUT{}, fmt.Errorf("lut %q: component out of range", id)
		}
		return RampLUT(uint8(r), uint8(g), uint8(b)), nil
	}
	if strings.HasSuffix(id, ".lut") {
		data, err := os.ReadFile(filepath.FromSlash(id))
		if err != nil {
			return LUT{}, fmt.Errorf("lut %q: %w", id, err)
		}
		lut, err := ParseLUT(data)
		if err != nil {
			return LUT{}, fmt.Errorf("lut %q: %w", id, err)
		}
		return lut, nil
	}
	if name, ok := closestLUTName(id); ok {
		lut, _ := lookupLUT(name)
		return lut, nil
	}
	return LUT{}, fmt.Errorf("unrecognized lut %q; known names: %s", id, strings.Join(LUTNames(), ", "))
}

func lookupLUT(id string) (LUT, bool) {
	if lut, ok := builtinRamps[id]; ok {
		return lut, true
	}
	if lut, ok := fijiLUTs[id]; ok {
		return lut, true
	}
	if lut, err := colormapLUT(id); err == nil {
		return lut, true
	}
	// Case-insensitive second pass.
	lower := strings.ToLower(id)
	if lut, ok := builtinRamps[lower]; ok {
		return lut, true
	}
	for name, lut := range fijiLUTs {
		if strings.EqualFold(name, id) {
			return lut, true
		}
	}
	if lut, err := colormapLUT(lower); err == nil {
		return lut, true
	}
	return LUT{}, false
}

const maxNameDistance = 2

func closestLUTName(id string) (string, bool) {
	best, bestDist := "", maxNameDistance+1
	for _, name := range LUTNames() {
		d := levenshtein.ComputeDistance(strings.ToLower(id), strings.ToLower(name))
		if d < bestDist {
			best, bestDist = name, d
		}
	}
	return best, bestDist <= maxNameDistance
}

// resolveLUTs resolves a list of identifiers for a stack of channels,
// broadcasting a single identifier across all of them.
func resolveLUTs(ids []string, channels int) ([]LUT, error) {
	if len(ids) == 1 && channels > 1 {
		one := ids[0]
		ids = make([]string, channels)
		for i := range ids {
			ids[i] = one
		}
	}
	if len(ids) != channels {
		return nil, fmt.Errorf("%d channels but %d luts", channels, len(ids))
	}
	luts := make([]LUT, len(ids))
	for i, id := range ids {
		lut, err := ResolveLUT(id)
		if err != nil {
			return nil, err
		}
		luts[i] = lut
	}
	return luts, nil
}
