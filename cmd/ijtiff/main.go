package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/tiff" // Register TIFF decoder.

	"github.com/fluocode/ijtiff"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "composite":
		if err := runComposite(os.Args[2:]); err != nil {
			fail(err)
		}
	case "write":
		if err := runWrite(os.Args[2:]); err != nil {
			fail(err)
		}
	case "lut":
		if err := runLUT(os.Args[2:]); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ijtiff <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  composite -out out.tif [-lut red,green] [-range 0:5,0:10] [-scale 0.5] ch1.tif ch2.tif ...")
	fmt.Fprintln(os.Stderr, "  write     -out out.tif [-lut red,green] [-range 0:5,0:10] [-pixelsize 0.02] [-composite] ch1.tif ch2.tif ...")
	fmt.Fprintln(os.Stderr, "  lut       -name \"Red Hot\" -out \"Red Hot.lut\"")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func runComposite(args []string) error {
	fs := flag.NewFlagSet("composite", flag.ContinueOnError)
	outPath := fs.String("out", "", "output file (.tif or .png)")
	lutList := fs.String("lut", "gray", "comma-separated LUT identifiers, one per channel or one for all")
	rangeList := fs.String("range", "", "comma-separated min:max display ranges")
	scale := fs.Float64("scale", 1, "scale factor for the output image")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" || fs.NArg() == 0 {
		return errors.New("missing output path or input channels")
	}

	stack, err := readStack(fs.Args())
	if err != nil {
		return err
	}
	ranges, err := parseRanges(*rangeList)
	if err != nil {
		return err
	}
	comp, err := ijtiff.MakeComposite(stack, strings.Split(*lutList, ","), ranges)
	if err != nil {
		return err
	}
	if *scale != 1 {
		if *scale <= 0 {
			return errors.New("scale must be positive")
		}
		comp, err = scaleRGB(comp, *scale)
		if err != nil {
			return err
		}
	}

	if strings.EqualFold(filepath.Ext(*outPath), ".png") {
		return writePNG(*outPath, comp)
	}
	return ijtiff.WriteRGB(*outPath, comp)
}

func runWrite(args []string) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	outPath := fs.String("out", "", "output TIFF file")
	lutList := fs.String("lut", "", "comma-separated LUT identifiers")
	rangeList := fs.String("range", "", "comma-separated min:max display ranges")
	pixelSize := fs.Float64("pixelsize", 0, "pixel size in microns")
	composite := fs.Bool("composite", false, "mark the image as an ImageJ composite")
	axes := fs.String("axes", "", "axes of the stacked data (default CYX)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" || fs.NArg() == 0 {
		return errors.New("missing output path or input channels")
	}

	stack, err := readStack(fs.Args())
	if err != nil {
		return err
	}
	ranges, err := parseRanges(*rangeList)
	if err != nil {
		return err
	}
	return ijtiff.Imwrite(*outPath, stack, func(o *ijtiff.WriteOptions) {
		if *lutList != "" {
			o.LUTs = strings.Split(*lutList, ",")
		}
		o.Ranges = ranges
		o.Composite = *composite
		o.Axes = *axes
		if *pixelSize > 0 {
			o.PixelSize = []float64{*pixelSize}
		}
	})
}

func runLUT(args []string) error {
	fs := flag.NewFlagSet("lut", flag.ContinueOnError)
	name := fs.String("name", "", "LUT identifier to resolve")
	outPath := fs.String("out", "", "output .lut file")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *outPath == "" {
		return errors.New("missing -name or -out")
	}
	lut, err := ijtiff.ResolveLUT(*name)
	if err != nil {
		return err
	}
	return os.WriteFile(*outPath, lut.Text(), 0o644)
}

// readStack decodes single-channel images and stacks them along a
// leading channel axis.
func readStack(paths []string) (*ijtiff.Array, error) {
	channels := make([]*ijtiff.Array, 0, len(paths))
	for _, p := range paths {
		ch, err := readChannel(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		channels = append(channels, ch)
	}
	if len(channels) == 1 {
		return channels[0], nil
	}
	return ijtiff.Stack(channels...)
}

func readChannel(path string) (*ijtiff.Array, error) {
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch im := img.(type) {
	case *image.Gray:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:], im.Pix[y*im.Stride:y*im.Stride+w])
		}
		return ijtiff.NewUint8([]int{h, w}, pix)
	case *image.Gray16:
		pix := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*im.Stride + 2*x
				pix[y*w+x] = uint16(im.Pix[i])<<8 | uint16(im.Pix[i+1])
			}
		}
		return ijtiff.NewUint16([]int{h, w}, pix)
	case *image.Paletted:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:], im.Pix[y*im.Stride:y*im.Stride+w])
		}
		return ijtiff.NewUint8([]int{h, w}, pix)
	default:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				pix[y*w+x] = c.Y
			}
		}
		return ijtiff.NewUint8([]int{h, w}, pix)
	}
}

// scaleRGB resizes a (3, H, W) composite with Lanczos resampling.
func scaleRGB(comp *ijtiff.Array, scale float64) (*ijtiff.Array, error) {
	src := rgbaFromComposite(comp)
	w := uint(float64(src.Bounds().Dx())*scale + 0.5)
	h := uint(float64(src.Bounds().Dy())*scale + 0.5)
	if w == 0 || h == 0 {
		return nil, errors.New("scaled image is empty")
	}
	dst := resize.Resize(w, h, src, resize.Lanczos3)
	return compositeFromImage(dst)
}

func rgbaFromComposite(comp *ijtiff.Array) *image.RGBA {
	shape := comp.Shape()
	height, width := shape[1], shape[2]
	size := height * width
	pix := comp.Uint8Data()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < size; i++ {
		img.Pix[4*i] = pix[i]
		img.Pix[4*i+1] = pix[size+i]
		img.Pix[4*i+2] = pix[2*size+i]
		img.Pix[4*i+3] = 255
	}
	return img
}

func compositeFromImage(img image.Image) (*ijtiff.Array, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	size := w * h
	pix := make([]uint8, 3*size)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			pix[i] = uint8(r >> 8)
			pix[size+i] = uint8(g >> 8)
			pix[2*size+i] = uint8(bl >> 8)
		}
	}
	return ijtiff.NewUint8([]int{3, h, w}, pix)
}

func writePNG(path string, comp *ijtiff.Array) error {
	f, err := os.Create(filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, rgbaFromComposite(comp))
}

func parseRanges(s string) ([]ijtiff.Range, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ranges := make([]ijtiff.Range, 0, len(parts))
	for _, p := range parts {
		lo, hi, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("range %q: want min:max", p)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", p, err)
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", p, err)
		}
		r, err := ijtiff.NewRange(min, max)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
