package ijtiff

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// OverlayOptions controls LifetimeOverlay.
type OverlayOptions struct {
	// Intensity weights each pixel's brightness; nil means full
	// brightness everywhere. Must match the lifetime image's shape.
	Intensity *Array
	// LUT colors the lifetime values. Defaults to "rainbow".
	LUT string
	// LifetimeRange is the lifetime display window. Defaults to (0, 5),
	// a usual nanosecond window for fluorescence lifetimes.
	LifetimeRange *Range
	// IntensityRange normalizes the intensity image. Defaults to its
	// own min and max.
	IntensityRange *Range
}

// LifetimeOverlay maps a 2-D lifetime image through a colormap and
// weights each pixel's brightness by a matching intensity image: the
// colormapped pixel is converted to HSV, its value replaced with the
// normalized intensity, and converted back. Returns a (3, H, W) uint8
// image.
func LifetimeOverlay(lifetime *Array, opts ...func(o *OverlayOptions)) (*Array, error) {
	opt := OverlayOptions{LUT: "rainbow"}
	for _, o := range opts {
		o(&opt)
	}

	if lifetime.NDim() != 2 {
		return nil, fmt.Errorf("lifetime image must be 2-D, got shape %v", lifetime.Shape())
	}
	height, width := lifetime.shape[0], lifetime.shape[1]
	size := height * width

	if opt.Intensity != nil && !equalShape(opt.Intensity.shape, lifetime.shape) {
		return nil, fmt.Errorf("intensity shape %v does not match lifetime shape %v",
			opt.Intensity.Shape(), lifetime.Shape())
	}

	lut, err := ResolveLUT(opt.LUT)
	if err != nil {
		return nil, err
	}

	ltRange := Range{Min: 0, Max: 5}
	if opt.LifetimeRange != nil {
		if !(opt.LifetimeRange.Min < opt.LifetimeRange.Max) {
			return nil, fmt.Errorf("degenerate lifetime range [%g, %g]",
				opt.LifetimeRange.Min, opt.LifetimeRange.Max)
		}
		ltRange = *opt.LifetimeRange
	}

	var inRange Range
	inAuto := false
	if opt.Intensity != nil {
		if opt.IntensityRange != nil {
			if !(opt.IntensityRange.Min < opt.IntensityRange.Max) {
				return nil, fmt.Errorf("degenerate intensity range [%g, %g]",
					opt.IntensityRange.Min, opt.IntensityRange.Max)
			}
			inRange = *opt.IntensityRange
		} else {
			inRange.Min, inRange.Max = opt.Intensity.MinMax()
			inAuto = true
		}
	}

	pix := make([]uint8, 3*size)
	for i := 0; i < size; i++ {
		idx := lutIndex(lifetime.at(i), ltRange, false)
		c := colorful.Color{
			R: float64(lut[0][idx]) / 255,
			G: float64(lut[1][idx]) / 255,
			B: float64(lut[2][idx]) / 255,
		}
		v := 1.0
		if opt.Intensity != nil {
			v = scale01(opt.Intensity.at(i), inRange, inAuto)
		}
		h, s, _ := c.Hsv()
		c = colorful.Hsv(h, s, v)
		pix[i] = uint8(c.R*255 + 0.5)
		pix[size+i] = uint8(c.G*255 + 0.5)
		pix[2*size+i] = uint8(c.B*255 + 0.5)
	}
	return NewUint8([]int{3, height, width}, pix)
}

// FractionOverlay renders a (3, H, W) fraction map as RGB: each output
// channel is the sum of the other two channels' fractions, clipped to 1,
// and each pixel's HSV value is replaced with the normalized intensity.
// A nil intensity means full brightness; a nil intensityRange defaults
// to (0, 1).
func FractionOverlay(fractions, intensity *Array, intensityRange *Range) (*Array, error) {
	if fractions.NDim() != 3 || fractions.shape[0] != 3 {
		return nil, fmt.Errorf("fraction map must be (3, H, W), got shape %v", fractions.Shape())
	}
	height, width := fractions.shape[1], fractions.shape[2]
	size := height * width

	if intensity != nil && !equalShape(intensity.shape, fractions.shape[1:]) {
		return nil, fmt.Errorf("intensity shape %v does not match fraction map shape %v",
			intensity.Shape(), fractions.Shape())
	}
	inRange := Range{Min: 0, Max: 1}
	if intensityRange != nil {
		if !(intensityRange.Min < intensityRange.Max) {
			return nil, fmt.Errorf("degenerate intensity range [%g, %g]",
				intensityRange.Min, intensityRange.Max)
		}
		inRange = *intensityRange
	}

	pix := make([]uint8, 3*size)
	for i := 0; i < size; i++ {
		fr := fractions.at(i)
		fg := fractions.at(size + i)
		fb := fractions.at(2*size + i)
		c := colorful.Color{
			R: clamp01(fg + fb),
			G: clamp01(fr + fb),
			B: clamp01(fg + fr),
		}
		v := 1.0
		if intensity != nil {
			v = scale01(intensity.at(i), inRange, false)
		}
		h, s, _ := c.Hsv()
		c = colorful.Hsv(h, s, v)
		pix[i] = uint8(c.R*255 + 0.5)
		pix[size+i] = uint8(c.G*255 + 0.5)
		pix[2*size+i] = uint8(c.B*255 + 0.5)
	}
	return NewUint8([]int{3, height, width}, pix)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scale01(v float64, r Range, auto bool) float64 {
	var s float64
	if r.Min == r.Max {
		if !auto {
			return 0
		}
		s = v / (r.Max + 1e-6)
	} else {
		s = (v - r.Min) / (r.Max - r.Min)
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
