package elevation

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/tiff/lzw"
)

// TIFF tags read from the first image directory.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagGDALNoData      = 42113
)

const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3

	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionDeflateOld = 32946

	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3

	planarSeparate = 2
)

var errTIFFFormat = errors.New("malformed tiff")

type tiffField struct {
	typ   uint16
	count uint32
	raw   []byte
}

// tiffDir is the first image file directory of a classic (non-Big) TIFF.
type tiffDir struct {
	order  binary.ByteOrder
	data   []byte
	fields map[uint16]tiffField
}

func readTIFFDir(data []byte) (*tiffDir, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: short header", errTIFFFormat)
	}
	d := &tiffDir{data: data, fields: make(map[uint16]tiffField)}
	switch string(data[:2]) {
	case "II":
		d.order = binary.LittleEndian
	case "MM":
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad byte order mark", errTIFFFormat)
	}
	if magic := d.order.Uint16(data[2:4]); magic != 42 {
		return nil, fmt.Errorf("%w: magic %d", errTIFFFormat, magic)
	}

	off := int64(d.order.Uint32(data[4:8]))
	if off+2 > int64(len(data)) {
		return nil, fmt.Errorf("%w: directory offset %d out of range", errTIFFFormat, off)
	}
	n := int64(d.order.Uint16(data[off:]))
	entries := off + 2
	if entries+12*n > int64(len(data)) {
		return nil, fmt.Errorf("%w: directory runs past end of file", errTIFFFormat)
	}

	for i := range n {
		e := data[entries+12*i : entries+12*i+12]
		typ := d.order.Uint16(e[2:4])
		count := d.order.Uint32(e[4:8])
		size := int64(typeSize(typ)) * int64(count)
		if size == 0 {
			continue
		}
		raw := e[8:12]
		if size > 4 {
			at := int64(d.order.Uint32(e[8:12]))
			if at+size > int64(len(data)) {
				return nil, fmt.Errorf("%w: tag %d value out of range", errTIFFFormat, d.order.Uint16(e[0:2]))
			}
			raw = data[at : at+size]
		} else {
			raw = raw[:size]
		}
		d.fields[d.order.Uint16(e[0:2])] = tiffField{typ: typ, count: count, raw: raw}
	}
	return d, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	}
	return 0
}

// uints returns an integer-typed field.
func (d *tiffDir) uints(tag uint16) []uint64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, f.count)
	for i := range int(f.count) {
		switch f.typ {
		case 1:
			out = append(out, uint64(f.raw[i]))
		case 3:
			out = append(out, uint64(d.order.Uint16(f.raw[2*i:])))
		case 4:
			out = append(out, uint64(d.order.Uint32(f.raw[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *tiffDir) value(tag uint16, def uint64) uint64 {
	if v := d.uints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

func (d *tiffDir) sampleFormat() uint64 {
	return d.value(tagSampleFormat, sampleFormatUint)
}

func (d *tiffDir) bitsPerSample() uint64 {
	return d.value(tagBitsPerSample, 1)
}

// noData returns the GDAL_NODATA value, if the coverage declares one.
func (d *tiffDir) noData() (float64, bool) {
	f, ok := d.fields[tagGDALNoData]
	if !ok || f.typ != 2 {
		return 0, false
	}
	s := strings.TrimSpace(strings.TrimRight(string(f.raw), "\x00"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sampleRaster decodes the first sample of every pixel of a signed integer
// or IEEE float image.
func (d *tiffDir) sampleRaster() (*Raster, error) {
	width := int(d.value(tagImageWidth, 0))
	height := int(d.value(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image is %dx%d", errTIFFFormat, width, height)
	}
	format := d.sampleFormat()
	bps := int(d.bitsPerSample())
	switch {
	case format == sampleFormatFloat && (bps == 32 || bps == 64):
	case format == sampleFormatInt && (bps == 8 || bps == 16 || bps == 32):
	default:
		return nil, fmt.Errorf("%w: sample format %d with %d bits", errTIFFFormat, format, bps)
	}
	bytesPerSample := bps / 8

	spp := int(d.value(tagSamplesPerPixel, 1))
	if d.value(tagPlanarConfig, 1) == planarSeparate {
		// The first plane holds sample 0 for every pixel.
		spp = 1
	}
	predictor := d.value(tagPredictor, predictorNone)
	switch {
	case predictor == predictorNone:
	case predictor == predictorFloat && format == sampleFormatFloat:
	case predictor == predictorHorizontal && format == sampleFormatInt:
	default:
		return nil, fmt.Errorf("%w: predictor %d on sample format %d", errTIFFFormat, predictor, format)
	}

	chunkW, chunkH := width, int(d.value(tagRowsPerStrip, uint64(height)))
	offsets, counts := d.uints(tagStripOffsets), d.uints(tagStripByteCounts)
	tiled := false
	if tw := d.value(tagTileWidth, 0); tw > 0 {
		chunkW, chunkH = int(tw), int(d.value(tagTileLength, 0))
		offsets, counts = d.uints(tagTileOffsets), d.uints(tagTileByteCounts)
		tiled = true
	}
	if chunkW <= 0 || chunkH <= 0 {
		return nil, fmt.Errorf("%w: chunk is %dx%d", errTIFFFormat, chunkW, chunkH)
	}
	if !tiled {
		chunkH = min(chunkH, height)
	}
	across := (width + chunkW - 1) / chunkW
	down := (height + chunkH - 1) / chunkH
	if len(offsets) < across*down || len(counts) < across*down {
		return nil, fmt.Errorf("%w: %d chunks listed, need %d", errTIFFFormat, len(offsets), across*down)
	}

	r := &Raster{Width: width, Height: height, Values: make([]float64, width*height)}
	rowBytes := chunkW * spp * bytesPerSample
	bits := make([]uint64, chunkW)
	for cy := range down {
		for cx := range across {
			i := cy*across + cx
			buf, err := d.chunk(offsets[i], counts[i])
			if err != nil {
				return nil, err
			}
			rows := chunkH
			if !tiled {
				rows = min(chunkH, height-cy*chunkH)
			}
			if len(buf) < rows*rowBytes {
				return nil, fmt.Errorf("%w: chunk %d holds %d bytes, need %d", errTIFFFormat, i, len(buf), rows*rowBytes)
			}

			for row := range rows {
				y := cy*chunkH + row
				if y >= height {
					break
				}
				line := buf[row*rowBytes : (row+1)*rowBytes]
				order := d.order
				if predictor == predictorFloat {
					line = undoFloatPredictor(line, spp, bytesPerSample)
					order = binary.BigEndian
				}
				readBits(bits, line, order, spp*bytesPerSample, bytesPerSample)
				if predictor == predictorHorizontal {
					mask := uint64(1)<<bps - 1
					for col := 1; col < chunkW; col++ {
						bits[col] = (bits[col] + bits[col-1]) & mask
					}
				}
				for col := range chunkW {
					x := cx*chunkW + col
					if x >= width {
						break
					}
					r.Values[y*width+x] = sampleValue(bits[col], format, bps)
				}
			}
		}
	}
	return r, nil
}

// readBits loads the first sample of each pixel of line as raw bits.
func readBits(dst []uint64, line []byte, order binary.ByteOrder, stride, size int) {
	for col := range dst {
		at := col * stride
		switch size {
		case 1:
			dst[col] = uint64(line[at])
		case 2:
			dst[col] = uint64(order.Uint16(line[at:]))
		case 4:
			dst[col] = uint64(order.Uint32(line[at:]))
		default:
			dst[col] = order.Uint64(line[at:])
		}
	}
}

func sampleValue(bits uint64, format uint64, bps int) float64 {
	if format == sampleFormatFloat {
		if bps == 32 {
			return float64(math.Float32frombits(uint32(bits)))
		}
		return math.Float64frombits(bits)
	}
	shift := 64 - bps
	return float64(int64(bits<<shift) >> shift)
}

func (d *tiffDir) chunk(offset, count uint64) ([]byte, error) {
	if offset+count > uint64(len(d.data)) {
		return nil, fmt.Errorf("%w: chunk at %d+%d out of range", errTIFFFormat, offset, count)
	}
	raw := d.data[offset : offset+count]

	var rc io.ReadCloser
	switch c := d.value(tagCompression, compressionNone); c {
	case compressionNone:
		return raw, nil
	case compressionLZW:
		rc = lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", errTIFFFormat, err)
		}
		rc = zr
	default:
		return nil, fmt.Errorf("%w: compression %d", errTIFFFormat, c)
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", errTIFFFormat, err)
	}
	return out, nil
}

// undoFloatPredictor reverses the floating-point predictor on one row. The
// predictor byte-differences the row after splitting each sample into byte
// planes, most significant plane first, so the result is big-endian.
func undoFloatPredictor(line []byte, spp, bytesPerSample int) []byte {
	tmp := make([]byte, len(line))
	copy(tmp, line)
	for i := spp; i < len(tmp); i++ {
		tmp[i] += tmp[i-spp]
	}
	n := len(tmp) / bytesPerSample
	out := make([]byte, len(tmp))
	for s := range n {
		for b := range bytesPerSample {
			out[s*bytesPerSample+b] = tmp[b*n+s]
		}
	}
	return out
}
