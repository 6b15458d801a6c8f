package ijtiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// defaultAxes is the canonical ImageJ dimension order: time, z-slice,
// channel, y, x. Arrays are transposed to this order before writing.
const defaultAxes = "TZCYX"

const imagejVersion = "ImageJ=1.11a"

// WriteOptions controls Imwrite.
type WriteOptions struct {
	// LUTs holds one identifier per channel, or a single identifier
	// broadcast across all channels. See ResolveLUT for the accepted forms.
	LUTs []string
	// Ranges holds one display range per channel, or a single range
	// broadcast across all channels.
	Ranges []Range
	// Composite marks a multi-channel image as an ImageJ composite so
	// viewers blend the channels.
	Composite bool
	// Axes names the dimension order of the data, drawn from "TZCYX".
	// Defaults to the trailing characters of "TZCYX" for the data's
	// dimensionality.
	Axes string
	// PixelSize is the physical pixel size in microns, either one value
	// for square pixels or (x, y).
	PixelSize []float64
}

// Imwrite writes data to an ImageJ-compatible TIFF file. Channel LUTs
// and display ranges are embedded so scientific viewers pick them up;
// the raw sample values are written untouched.
func Imwrite(path string, data *Array, opts ...func(o *WriteOptions)) error {
	var opt WriteOptions
	for _, o := range opts {
		o(&opt)
	}

	if data.NDim() < 2 {
		return fmt.Errorf("data must have at least 2 dimensions, got shape %v", data.Shape())
	}
	axes, data, err := normalizeAxes(data, opt.Axes)
	if err != nil {
		return err
	}

	dims := axisSizes(axes, data.shape)
	channels := dims['C']
	height, width := dims['Y'], dims['X']

	var luts []LUT
	if opt.LUTs != nil {
		luts, err = resolveLUTs(opt.LUTs, channels)
		if err != nil {
			return err
		}
	}
	var ranges []Range
	if opt.Ranges != nil {
		ranges, _, err = normalizeRanges(data, opt.Ranges, channels)
		if err != nil {
			return err
		}
	}

	img := &tiffImage{
		width:           width,
		height:          height,
		bitsPerSample:   data.dtype.bits(),
		samplesPerPixel: 1,
		photometric:     photometricBlackIsZero,
	}
	if data.dtype == Float32 {
		img.sampleFormat = sampleFormatFloat
	} else {
		img.sampleFormat = sampleFormatUint
	}
	for p := 0; p < data.planes(); p++ {
		img.planes = append(img.planes, encodePlane(data, p))
	}

	single := channels == 1
	if single && len(luts) == 1 && data.dtype == Uint8 {
		// Only 8-bit samples can index a 256-entry TIFF palette; wider
		// samples keep MinIsBlack and carry their LUT in IJMetadata.
		img.colorMap = paletteColorMap(luts[0])
		img.photometric = photometricPalette
		luts = nil
	}
	if luts != nil || (!single && ranges != nil) {
		var metaRanges []Range
		if !single {
			metaRanges = ranges
		}
		img.ijCounts, img.ijMeta = buildIJMetadata(luts, metaRanges)
	}

	if opt.PixelSize != nil {
		xres, yres, err := pixelSizeResolution(opt.PixelSize)
		if err != nil {
			return err
		}
		img.xres, img.yres = xres, yres
	}

	img.description = imagejDescription(dims, opt, single, ranges)

	out, err := img.encode()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.FromSlash(path), out, 0o644)
}

// WriteComposite flattens a channel stack with MakeComposite and writes
// the resulting RGB image to an ImageJ-compatible TIFF file.
func WriteComposite(path string, stack *Array, luts []string, ranges []Range) error {
	comp, err := MakeComposite(stack, luts, ranges)
	if err != nil {
		return err
	}
	return WriteRGB(path, comp)
}

// WriteRGB writes a (3, H, W) uint8 array, such as a MakeComposite
// result, as one interleaved RGB plane.
func WriteRGB(path string, rgb *Array) error {
	if rgb.NDim() != 3 || rgb.shape[0] != 3 || rgb.dtype != Uint8 {
		return fmt.Errorf("rgb image must be (3, H, W) uint8, got %v %s", rgb.Shape(), rgb.DType())
	}
	height, width := rgb.shape[1], rgb.shape[2]
	size := height * width
	plane := make([]byte, 3*size)
	for i := 0; i < size; i++ {
		plane[3*i] = rgb.u8[i]
		plane[3*i+1] = rgb.u8[size+i]
		plane[3*i+2] = rgb.u8[2*size+i]
	}
	img := &tiffImage{
		width:           width,
		height:          height,
		planes:          [][]byte{plane},
		bitsPerSample:   8,
		sampleFormat:    sampleFormatUint,
		samplesPerPixel: 3,
		photometric:     photometricRGB,
		description:     imagejVersion + "\nimages=1\n",
	}
	out, err := img.encode()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.FromSlash(path), out, 0o644)
}

// normalizeAxes validates the axes string against the data and
// transposes the data into canonical TZCYX order.
func normalizeAxes(data *Array, axes string) (string, *Array, error) {
	if axes == "" {
		axes = defaultAxes[len(defaultAxes)-data.NDim():]
	}
	axes = strings.ToUpper(axes)
	if len(axes) != data.NDim() {
		return "", nil, fmt.Errorf("axes %q do not match data shape %v", axes, data.Shape())
	}
	seen := map[byte]bool{}
	for i := 0; i < len(axes); i++ {
		c := axes[i]
		if !strings.ContainsRune(defaultAxes, rune(c)) {
			return "", nil, fmt.Errorf("unsupported axis %q in %q", string(c), axes)
		}
		if seen[c] {
			return "", nil, fmt.Errorf("repeated axis %q in %q", string(c), axes)
		}
		seen[c] = true
	}
	if !seen['Y'] || !seen['X'] {
		return "", nil, fmt.Errorf("axes %q must include Y and X", axes)
	}

	var order []int
	var normalized []byte
	for i := 0; i < len(defaultAxes); i++ {
		c := defaultAxes[i]
		if idx := strings.IndexByte(axes, c); idx >= 0 {
			order = append(order, idx)
			normalized = append(normalized, c)
		}
	}
	out, err := data.transpose(order)
	if err != nil {
		return "", nil, err
	}
	return string(normalized), out, nil
}

// axisSizes maps each canonical axis to its size, defaulting to 1 for
// axes the data does not carry.
func axisSizes(axes string, shape []int) map[byte]int {
	dims := map[byte]int{'T': 1, 'Z': 1, 'C': 1, 'Y': 1, 'X': 1}
	for i := 0; i < len(axes); i++ {
		dims[axes[i]] = shape[i]
	}
	return dims
}

func imagejDescription(dims map[byte]int, opt WriteOptions, single bool, ranges []Range) string {
	var b strings.Builder
	b.WriteString(imagejVersion + "\n")
	images := dims['T'] * dims['Z'] * dims['C']
	fmt.Fprintf(&b, "images=%d\n", images)
	if dims['C'] > 1 {
		fmt.Fprintf(&b, "channels=%d\n", dims['C'])
	}
	if dims['Z'] > 1 {
		fmt.Fprintf(&b, "slices=%d\n", dims['Z'])
	}
	if dims['T'] > 1 {
		fmt.Fprintf(&b, "frames=%d\n", dims['T'])
	}
	stacked := 0
	for _, axis := range []byte{'C', 'Z', 'T'} {
		if dims[axis] > 1 {
			stacked++
		}
	}
	if stacked >= 2 {
		b.WriteString("hyperstack=true\n")
	}
	if opt.Composite && dims['C'] > 1 {
		b.WriteString("mode=composite\n")
	}
	if single && len(ranges) == 1 {
		fmt.Fprintf(&b, "min=%g\nmax=%g\n", ranges[0].Min, ranges[0].Max)
	}
	if opt.PixelSize != nil {
		b.WriteString("unit=um\n")
	}
	return b.String()
}

// paletteColorMap widens an 8-bit LUT into the 16-bit TIFF ColorMap layout.
func paletteColorMap(lut LUT) []uint16 {
	cm := make([]uint16, 3*256)
	for c := 0; c < 3; c++ {
		for i := 0; i < 256; i++ {
			cm[c*256+i] = uint16(lut[c][i]) << 8
		}
	}
	return cm
}

const (
	ijMagic     = 0x494a494a // "IJIJ"
	ijTypeRange = 0x72616e67 // "rang"
	ijTypeLUTs  = 0x6c757473 // "luts"
)

// buildIJMetadata assembles the IJMetadata payload (tag 50839) and its
// byte-counts companion (tag 50838): a header listing the chunk types,
// then per-channel display ranges as float64 pairs and 768-byte LUTs.
func buildIJMetadata(luts []LUT, ranges []Range) (counts []uint32, data []byte) {
	nTypes := 0
	if ranges != nil {
		nTypes++
	}
	if luts != nil {
		nTypes++
	}
	if nTypes == 0 {
		return nil, nil
	}

	headerLen := uint32(4 + 8*nTypes)
	counts = append(counts, headerLen)

	header := make([]byte, 0, headerLen)
	header = appendU32(header, ijMagic)

	var chunks []byte
	if ranges != nil {
		header = appendU32(header, ijTypeRange)
		header = appendU32(header, 1)
		start := len(chunks)
		for _, r := range ranges {
			chunks = appendU64(chunks, math.Float64bits(r.Min))
			chunks = appendU64(chunks, math.Float64bits(r.Max))
		}
		counts = append(counts, uint32(len(chunks)-start))
	}
	if luts != nil {
		header = appendU32(header, ijTypeLUTs)
		header = appendU32(header, uint32(len(luts)))
		for _, lut := range luts {
			start := len(chunks)
			for c := 0; c < 3; c++ {
				chunks = append(chunks, lut[c][:]...)
			}
			counts = append(counts, uint32(len(chunks)-start))
		}
	}
	return counts, append(header, chunks...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// pixelSizeResolution converts a pixel size in microns to X/Y resolution
// rationals (pixels per micron).
func pixelSizeResolution(ps []float64) (xres, yres [2]uint32, err error) {
	var px, py float64
	switch len(ps) {
	case 1:
		px, py = ps[0], ps[0]
	case 2:
		px, py = ps[0], ps[1]
	default:
		return xres, yres, errors.New("pixel size must have 1 or 2 values")
	}
	if px <= 0 || py <= 0 {
		return xres, yres, errors.New("pixel size must be positive")
	}
	xres = rationalApprox(1 / px)
	yres = rationalApprox(1 / py)
	return xres, yres, nil
}

func rationalApprox(v float64) [2]uint32 {
	const den = 1000000
	num := uint64(math.Round(v * den))
	if num == 0 {
		num = 1
	}
	d := uint64(den)
	for num%10 == 0 && d%10 == 0 {
		num /= 10
		d /= 10
	}
	if num > math.MaxUint32 {
		return [2]uint32{math.MaxUint32, uint32(d * uint64(math.MaxUint32) / num)}
	}
	return [2]uint32{uint32(num), uint32(d)}
}
