package ijtiff

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"
)

// Classic little-endian TIFF, one IFD and one strip per 2-D plane.

const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagImageDescription    = 270
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagXResolution         = 282
	tagYResolution         = 283
	tagResolutionUnit      = 296
	tagColorMap            = 320
	tagSampleFormat        = 339
	tagIJMetadataByteCount = 50838
	tagIJMetadata          = 50839
)

const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	photometricBlackIsZero = 1
	photometricRGB         = 2
	photometricPalette     = 3

	compressionNone = 1

	sampleFormatUint  = 1
	sampleFormatFloat = 3

	resolutionUnitNone = 1
)

// tiffImage is everything the encoder needs to lay out a file. All
// planes share dimensions and sample layout; the description, color map,
// IJMetadata and resolution go on the first IFD only.
type tiffImage struct {
	width, height   int
	planes          [][]byte // little-endian sample bytes
	bitsPerSample   int
	sampleFormat    uint16
	samplesPerPixel int
	photometric     uint16

	description string
	colorMap    []uint16 // 3*256 entries, or nil
	ijCounts    []uint32
	ijMeta      []byte
	xres, yres  [2]uint32 // rational, zero denominator = omit
}

type tiffField struct {
	tag, typ uint16
	count    uint32
	data     []byte // raw little-endian value bytes
}

func fieldShort(tag uint16, vs ...uint16) tiffField {
	data := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return tiffField{tag: tag, typ: typeShort, count: uint32(len(vs)), data: data}
}

func fieldLong(tag uint16, vs ...uint32) tiffField {
	data := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return tiffField{tag: tag, typ: typeLong, count: uint32(len(vs)), data: data}
}

func fieldASCII(tag uint16, s string) tiffField {
	data := append([]byte(s), 0)
	return tiffField{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

func fieldRational(tag uint16, num, den uint32) tiffField {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, num)
	binary.LittleEndian.PutUint32(data[4:], den)
	return tiffField{tag: tag, typ: typeRational, count: 1, data: data}
}

func fieldBytes(tag uint16, data []byte) tiffField {
	return tiffField{tag: tag, typ: typeByte, count: uint32(len(data)), data: data}
}

func (img *tiffImage) fields(ifdIndex int) []tiffField {
	planeBytes := uint32(len(img.planes[ifdIndex]))
	f := []tiffField{
		fieldLong(tagImageWidth, uint32(img.width)),
		fieldLong(tagImageLength, uint32(img.height)),
		fieldShort(tagCompression, compressionNone),
		fieldShort(tagPhotometric, img.photometric),
		fieldLong(tagStripOffsets, 0), // patched during layout
		fieldShort(tagSamplesPerPixel, uint16(img.samplesPerPixel)),
		fieldLong(tagRowsPerStrip, uint32(img.height)),
		fieldLong(tagStripByteCounts, planeBytes),
	}
	bits := make([]uint16, img.samplesPerPixel)
	formats := make([]uint16, img.samplesPerPixel)
	for i := range bits {
		bits[i] = uint16(img.bitsPerSample)
		formats[i] = img.sampleFormat
	}
	f = append(f, fieldShort(tagBitsPerSample, bits...))
	if img.sampleFormat != sampleFormatUint {
		f = append(f, fieldShort(tagSampleFormat, formats...))
	}
	if ifdIndex == 0 {
		if img.description != "" {
			f = append(f, fieldASCII(tagImageDescription, img.description))
		}
		if img.xres[1] != 0 {
			f = append(f, fieldRational(tagXResolution, img.xres[0], img.xres[1]))
			f = append(f, fieldRational(tagYResolution, img.yres[0], img.yres[1]))
			f = append(f, fieldShort(tagResolutionUnit, resolutionUnitNone))
		}
		if img.colorMap != nil {
			f = append(f, fieldShort(tagColorMap, img.colorMap...))
		}
		if len(img.ijMeta) > 0 {
			f = append(f, fieldLong(tagIJMetadataByteCount, img.ijCounts...))
			f = append(f, fieldBytes(tagIJMetadata, img.ijMeta))
		}
	}
	sort.Slice(f, func(i, j int) bool { return f[i].tag < f[j].tag })
	return f
}

// encode lays out and serializes the file: header, all IFDs, out-of-line
// field values, then the plane data as one strip per IFD.
func (img *tiffImage) encode() ([]byte, error) {
	if img.width <= 0 || img.height <= 0 || len(img.planes) == 0 {
		return nil, errors.New("empty image")
	}
	want := img.width * img.height * img.samplesPerPixel * img.bitsPerSample / 8
	for _, p := range img.planes {
		if len(p) != want {
			return nil, errors.New("plane size does not match dimensions")
		}
	}

	ifds := make([][]tiffField, len(img.planes))
	ifdOffsets := make([]uint32, len(img.planes))
	offset := uint32(8)
	for i := range img.planes {
		ifds[i] = img.fields(i)
		ifdOffsets[i] = offset
		offset += 2 + 12*uint32(len(ifds[i])) + 4
	}

	// Out-of-line field values.
	extOffsets := make(map[*tiffField]uint32)
	for _, fs := range ifds {
		for i := range fs {
			if len(fs[i].data) > 4 {
				if offset%2 == 1 {
					offset++
				}
				extOffsets[&fs[i]] = offset
				offset += uint32(len(fs[i].data))
			}
		}
	}

	// Plane data, contiguous.
	if offset%2 == 1 {
		offset++
	}
	planeOffsets := make([]uint32, len(img.planes))
	for i, p := range img.planes {
		planeOffsets[i] = offset
		offset += uint32(len(p))
	}

	// Patch strip offsets now that the layout is known.
	for i, fs := range ifds {
		for j := range fs {
			if fs[j].tag == tagStripOffsets {
				binary.LittleEndian.PutUint32(fs[j].data, planeOffsets[i])
			}
		}
	}

	buf := make([]byte, offset)
	buf[0], buf[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(buf[2:], 42)
	binary.LittleEndian.PutUint32(buf[4:], ifdOffsets[0])

	for i, fs := range ifds {
		pos := ifdOffsets[i]
		binary.LittleEndian.PutUint16(buf[pos:], uint16(len(fs)))
		pos += 2
		for j := range fs {
			f := &fs[j]
			binary.LittleEndian.PutUint16(buf[pos:], f.tag)
			binary.LittleEndian.PutUint16(buf[pos+2:], f.typ)
			binary.LittleEndian.PutUint32(buf[pos+4:], f.count)
			if len(f.data) <= 4 {
				copy(buf[pos+8:pos+12], f.data)
			} else {
				ext := extOffsets[f]
				binary.LittleEndian.PutUint32(buf[pos+8:], ext)
				copy(buf[ext:], f.data)
			}
			pos += 12
		}
		next := uint32(0)
		if i+1 < len(ifds) {
			next = ifdOffsets[i+1]
		}
		binary.LittleEndian.PutUint32(buf[pos:], next)
	}

	for i, p := range img.planes {
		copy(buf[planeOffsets[i]:], p)
	}
	return buf, nil
}

// encodePlane serializes plane p of the array as little-endian samples.
func encodePlane(a *Array, p int) []byte {
	size := a.planeSize()
	start := p * size
	switch a.dtype {
	case Uint8:
		return append([]byte(nil), a.u8[start:start+size]...)
	case Uint16:
		out := make([]byte, 2*size)
		for i, v := range a.u16[start : start+size] {
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out
	default:
		out := make([]byte, 4*size)
		for i, v := range a.f32[start : start+size] {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	}
}
