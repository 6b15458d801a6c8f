package ijtiff

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/tiff"
)

func decodeTIFF(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestImwriteUint8RoundTrip(t *testing.T) {
	// Raw pixel values must survive a write with LUT and range metadata.
	pix := make([]uint8, 8*8)
	for i := range pix {
		pix[i] = uint8(i * 3)
	}
	data, err := NewUint8([]int{8, 8}, pix)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "single.tif")
	err = Imwrite(path, data, func(o *WriteOptions) {
		o.LUTs = []string{"Cyan Hot"}
		o.Ranges = []Range{{Min: 0, Max: 200}}
	})
	if err != nil {
		t.Fatal(err)
	}

	img := decodeTIFF(t, path)
	pal, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("expected paletted image, got %T", img)
	}
	got := make([]uint8, 8*8)
	for y := 0; y < 8; y++ {
		copy(got[y*8:], pal.Pix[y*pal.Stride:y*pal.Stride+8])
	}
	if diff := cmp.Diff(pix, got); diff != "" {
		t.Fatalf("pixels changed (-want +got):\n%s", diff)
	}
}

func TestImwriteUint16RoundTrip(t *testing.T) {
	pix := make([]uint16, 16*16)
	for i := range pix {
		pix[i] = uint16(i * 211)
	}
	data, err := NewUint16([]int{16, 16}, pix)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "gray16.tif")
	if err := Imwrite(path, data); err != nil {
		t.Fatal(err)
	}

	img := decodeTIFF(t, path)
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("expected 16-bit grayscale, got %T", img)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if got := gray.Gray16At(x, y).Y; got != pix[y*16+x] {
				t.Fatalf("pixel (%d, %d) = %d, want %d", x, y, got, pix[y*16+x])
			}
		}
	}
}

func TestImwriteUint16LUTRoundTrip(t *testing.T) {
	// 16-bit samples cannot index a 256-entry palette, so a LUT on a
	// single-channel uint16 image must ride in IJMetadata and leave the
	// samples grayscale.
	pix := make([]uint16, 8*8)
	for i := range pix {
		pix[i] = uint16(i * 911)
	}
	data, err := NewUint16([]int{8, 8}, pix)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "gray16lut.tif")
	err = Imwrite(path, data, func(o *WriteOptions) {
		o.LUTs = []string{"Red Hot"}
		o.Ranges = []Range{{Min: 0, Max: 60000}}
	})
	if err != nil {
		t.Fatal(err)
	}

	img := decodeTIFF(t, path)
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("expected 16-bit grayscale, got %T", img)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got := gray.Gray16At(x, y).Y; got != pix[y*8+x] {
				t.Fatalf("pixel (%d, %d) = %d, want %d", x, y, got, pix[y*8+x])
			}
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Little-endian IJMetadata magic on disk.
	if !bytes.Contains(raw, []byte("JIJI")) {
		t.Fatalf("file should carry the LUT in IJMetadata")
	}
}

func TestImwriteMultiChannel(t *testing.T) {
	pix := make([]uint16, 2*8*8)
	for i := range pix {
		pix[i] = uint16(i * 7)
	}
	data, err := NewUint16([]int{2, 8, 8}, pix)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "multi.tif")
	err = Imwrite(path, data, func(o *WriteOptions) {
		o.LUTs = []string{"cyan", "magenta"}
		o.Ranges = []Range{{0, 400}}
		o.Composite = true
		o.PixelSize = []float64{0.02}
	})
	if err != nil {
		t.Fatal(err)
	}

	// The first IFD carries channel 0 untouched.
	img := decodeTIFF(t, path)
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("expected 16-bit grayscale, got %T", img)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got := gray.Gray16At(x, y).Y; got != pix[y*8+x] {
				t.Fatalf("pixel (%d, %d) = %d, want %d", x, y, got, pix[y*8+x])
			}
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte("mode=composite")) {
		t.Fatalf("description should mark the composite mode")
	}
	if !bytes.Contains(raw, []byte("channels=2")) {
		t.Fatalf("description should carry the channel count")
	}
	if !bytes.Contains(raw, []byte("unit=um")) {
		t.Fatalf("description should carry the micron unit")
	}
}

func TestImwriteFloat32(t *testing.T) {
	pix := []float32{0, 0.5, 1, 1.5, 2, 2.5}
	data, err := NewFloat32([]int{2, 3}, pix)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "float.tif")
	err = Imwrite(path, data, func(o *WriteOptions) {
		o.LUTs = []string{"viridis"}
		o.Ranges = []Range{{0, 2.5}}
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < 8 || raw[0] != 'I' || raw[1] != 'I' || binary.LittleEndian.Uint16(raw[2:]) != 42 {
		t.Fatalf("not a little-endian TIFF header: % x", raw[:8])
	}
	if !bytes.Contains(raw, []byte("min=0")) || !bytes.Contains(raw, []byte("max=2.5")) {
		t.Fatalf("single-channel description should carry min/max")
	}
}

func TestImwriteErrors(t *testing.T) {
	data, err := NewUint8([]int{2, 4, 4}, make([]uint8, 32))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.tif")

	cases := []struct {
		name string
		opt  func(o *WriteOptions)
	}{
		{"axes too short", func(o *WriteOptions) { o.Axes = "YX" }},
		{"unknown axis", func(o *WriteOptions) { o.Axes = "QYX" }},
		{"repeated axis", func(o *WriteOptions) { o.Axes = "YYX" }},
		{"missing spatial axes", func(o *WriteOptions) { o.Axes = "TZC" }},
		{"lut count mismatch", func(o *WriteOptions) { o.LUTs = []string{"red", "green", "blue"} }},
		{"range count mismatch", func(o *WriteOptions) { o.Ranges = []Range{{0, 1}, {0, 1}, {0, 1}} }},
		{"degenerate range", func(o *WriteOptions) { o.Ranges = []Range{{1, 1}} }},
		{"unknown lut", func(o *WriteOptions) { o.LUTs = []string{"not-a-real-lut-name"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Imwrite(path, data, tc.opt); err == nil {
				t.Fatalf("expected error")
			}
			if _, err := os.Stat(path); err == nil {
				t.Fatalf("failed write should not leave a file")
			}
		})
	}

	one, _ := NewUint8([]int{4}, make([]uint8, 4))
	if err := Imwrite(path, one); err == nil {
		t.Fatalf("expected error for 1-D data")
	}
}

func TestNormalizeAxes(t *testing.T) {
	pix := make([]uint8, 2*3*4)
	for i := range pix {
		pix[i] = uint8(i)
	}
	// Axes CXY over shape (2, 3, 4): C=2, X=3, Y=4.
	data, err := NewUint8([]int{2, 3, 4}, pix)
	if err != nil {
		t.Fatal(err)
	}
	axes, out, err := normalizeAxes(data, "CXY")
	if err != nil {
		t.Fatal(err)
	}
	if axes != "CYX" {
		t.Fatalf("normalized axes = %q, want CYX", axes)
	}
	if diff := cmp.Diff([]int{2, 4, 3}, out.Shape()); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
	// Sample (c, x, y) in the input must land at (c, y, x).
	if got, want := out.Value(1, 2, 1), data.Value(1, 1, 2); got != want {
		t.Fatalf("transposed sample = %g, want %g", got, want)
	}

	axes, _, err = normalizeAxes(data, "")
	if err != nil {
		t.Fatal(err)
	}
	if axes != "CYX" {
		t.Fatalf("default axes for 3-D = %q, want CYX", axes)
	}
}

func TestBuildIJMetadata(t *testing.T) {
	luts := []LUT{RampLUT(255, 0, 0), RampLUT(0, 255, 0)}
	ranges := []Range{{0, 5}, {0, 10}}
	counts, data := buildIJMetadata(luts, ranges)

	// Header, one ranges chunk, one chunk per LUT.
	wantCounts := []uint32{4 + 8*2, 8 * 2 * 2, 768, 768}
	if diff := cmp.Diff(wantCounts, counts); diff != "" {
		t.Fatalf("byte counts mismatch (-want +got):\n%s", diff)
	}
	total := uint32(0)
	for _, c := range counts {
		total += c
	}
	if uint32(len(data)) != total {
		t.Fatalf("payload is %d bytes, counts sum to %d", len(data), total)
	}
	if binary.LittleEndian.Uint32(data) != ijMagic {
		t.Fatalf("payload does not start with the IJIJ magic")
	}
}

func TestWriteComposite(t *testing.T) {
	stack, err := NewFloat32([]int{2, 4, 4}, make([]float32, 32))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "comp.tif")
	if err := WriteComposite(path, stack, []string{"red", "green"}, []Range{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	img := decodeTIFF(t, path)
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("composite bounds = %v", img.Bounds())
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("zero stack should write a black composite, got (%d, %d, %d)", r, g, b)
	}
}

func TestRationalApprox(t *testing.T) {
	got := rationalApprox(50) // 0.02 um pixels
	if float64(got[0])/float64(got[1]) != 50 {
		t.Fatalf("rationalApprox(50) = %v", got)
	}
	got = rationalApprox(1 / 0.3)
	v := float64(got[0]) / float64(got[1])
	if v < 3.333 || v > 3.334 {
		t.Fatalf("rationalApprox(1/0.3) = %v (%g)", got, v)
	}
}

func TestImagejDescription(t *testing.T) {
	dims := map[byte]int{'T': 2, 'Z': 3, 'C': 4, 'Y': 8, 'X': 8}
	desc := imagejDescription(dims, WriteOptions{Composite: true}, false, nil)
	for _, want := range []string{"ImageJ=", "images=24", "channels=4", "slices=3", "frames=2", "hyperstack=true", "mode=composite"} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description missing %q:\n%s", want, desc)
		}
	}

	// A single-channel stack with both Z and T is still a hyperstack.
	dims = map[byte]int{'T': 2, 'Z': 3, 'C': 1, 'Y': 8, 'X': 8}
	desc = imagejDescription(dims, WriteOptions{}, true, nil)
	if !strings.Contains(desc, "hyperstack=true") {
		t.Fatalf("Z and T stack should be a hyperstack:\n%s", desc)
	}

	// One stacked dimension alone is not.
	dims = map[byte]int{'T': 1, 'Z': 1, 'C': 2, 'Y': 8, 'X': 8}
	desc = imagejDescription(dims, WriteOptions{}, false, nil)
	if strings.Contains(desc, "hyperstack=true") {
		t.Fatalf("plain channel stack should not be a hyperstack:\n%s", desc)
	}
}
