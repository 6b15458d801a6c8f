package ijtiff

import (
	"errors"
	"fmt"
)

// Range is a display range: intensities are linearly mapped so that Min
// becomes 0 and Max becomes 1.
type Range struct {
	Min, Max float64
}

// NewRange builds a Range, rejecting degenerate bounds.
func NewRange(min, max float64) (Range, error) {
	if !(min < max) {
		return Range{}, fmt.Errorf("invalid range [%g, %g]: min must be less than max", min, max)
	}
	return Range{Min: min, Max: max}, nil
}

// normalizeRanges validates user ranges against the channel count,
// broadcasting a single range. Nil ranges are computed per channel from
// the data; autoRanges marks those so that degenerate auto bounds (a
// constant channel) can use a fallback scale instead of failing.
func normalizeRanges(stack *Array, ranges []Range, channels int) ([]Range, []bool, error) {
	if ranges == nil {
		out := make([]Range, channels)
		auto := make([]bool, channels)
		for c := 0; c < channels; c++ {
			min, max := channelMinMax(stack, c, channels)
			out[c] = Range{Min: min, Max: max}
			auto[c] = true
		}
		return out, auto, nil
	}
	if len(ranges) == 1 && channels > 1 {
		one := ranges[0]
		ranges = make([]Range, channels)
		for i := range ranges {
			ranges[i] = one
		}
	}
	if len(ranges) != channels {
		return nil, nil, fmt.Errorf("%d channels but %d ranges", channels, len(ranges))
	}
	for i, r := range ranges {
		if !(r.Min < r.Max) {
			return nil, nil, fmt.Errorf("range %d is degenerate: [%g, %g]", i, r.Min, r.Max)
		}
	}
	return ranges, make([]bool, channels), nil
}

// channelMinMax scans channel c of a (C, ..., H, W) stack.
func channelMinMax(stack *Array, c, channels int) (min, max float64) {
	perChannel := stack.Len() / channels
	start := c * perChannel
	min = stack.at(start)
	max = min
	for i := start + 1; i < start+perChannel; i++ {
		v := stack.at(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// lutIndex maps a sample to a LUT entry through its range, clipped to
// [0, 255]. A degenerate auto range divides by the maximum so that a
// constant zero channel stays at entry 0.
func lutIndex(v float64, r Range, auto bool) int {
	return int(scale01(v, r, auto) * 255)
}

// MakeComposite flattens a (C, H, W) stack (or a single 2-D channel)
// into one (3, H, W) uint8 image: each channel is rescaled by its range,
// mapped through its LUT, and the contributions are summed and clipped
// to [0, 255]. LUT identifiers and ranges broadcast across channels; nil
// ranges default to each channel's own min and max.
func MakeComposite(stack *Array, luts []string, ranges []Range) (*Array, error) {
	switch stack.NDim() {
	case 2:
		var err error
		stack, err = Stack(stack)
		if err != nil {
			return nil, err
		}
	case 3:
	default:
		return nil, fmt.Errorf("composite input must be 2-D or 3-D, got shape %v", stack.Shape())
	}
	if len(luts) == 0 {
		return nil, errors.New("no luts given")
	}

	channels := stack.shape[0]
	height := stack.shape[1]
	width := stack.shape[2]

	resolved, err := resolveLUTs(luts, channels)
	if err != nil {
		return nil, err
	}
	rng, auto, err := normalizeRanges(stack, ranges, channels)
	if err != nil {
		return nil, err
	}

	size := height * width
	acc := make([]int32, 3*size)
	for c := 0; c < channels; c++ {
		lut := resolved[c]
		for i := 0; i < size; i++ {
			idx := lutIndex(stack.at(c*size+i), rng[c], auto[c])
			acc[i] += int32(lut[0][idx])
			acc[size+i] += int32(lut[1][idx])
			acc[2*size+i] += int32(lut[2][idx])
		}
	}

	pix := make([]uint8, 3*size)
	for i, v := range acc {
		if v > 255 {
			v = 255
		}
		pix[i] = uint8(v)
	}
	return NewUint8([]int{3, height, width}, pix)
}
