package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
)

// Bulk reads grow their destination in steps of this size, so an announced length
// is only backed by memory once the bytes actually arrive.
const readChunk = 64 * 1024

// AppendUint64 appends v as a little-endian u64.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// AppendInt64 appends v as a little-endian two's-complement i64.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(v))
}

// AppendUint64s appends a length-prefixed sequence of u64 values.
func AppendUint64s(dst []byte, vals []uint64) []byte {
	dst = AppendUint64(dst, uint64(len(vals)))
	for _, v := range vals {
		dst = AppendUint64(dst, v)
	}
	return dst
}

// AppendBytes appends a u64 length followed by the raw bytes of b.
func AppendBytes(dst []byte, b []byte) []byte {
	dst = AppendUint64(dst, uint64(len(b)))
	return append(dst, b...)
}

// AppendString appends the length-prefixed UTF-8 bytes of s. No terminator is written.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint64(dst, uint64(len(s)))
	return append(dst, s...)
}

// ReadUint64 reads one little-endian u64 from r.
func ReadUint64(r io.Reader) (uint64, error) {
	fr := frameReader{r: r}
	return fr.uint64("u64")
}

// ReadInt64 reads one little-endian i64 from r.
func ReadInt64(r io.Reader) (int64, error) {
	fr := frameReader{r: r}
	v, err := fr.uint64("i64")
	return int64(v), err
}

// ReadUint64s reads a length-prefixed sequence of u64 values from r.
func ReadUint64s(r io.Reader) ([]uint64, error) {
	fr := frameReader{r: r}
	return fr.uint64s("sequence")
}

// ReadBytes reads a u64 length followed by that many raw bytes from r.
func ReadBytes(r io.Reader) ([]byte, error) {
	fr := frameReader{r: r}
	n, err := fr.uint64("length")
	if err != nil {
		return nil, err
	}
	return fr.bytes(n, "data")
}

// frameReader tracks how many bytes of the current frame have been consumed so it
// can tell a clean end of stream from a frame cut short.
type frameReader struct {
	r        io.Reader
	consumed int64
	scratch  [8]byte
}

func (fr *frameReader) uint64(field string) (uint64, error) {
	n, err := io.ReadFull(fr.r, fr.scratch[:])
	fr.consumed += int64(n)
	if err != nil {
		return 0, fr.fail(field, err)
	}
	return binary.LittleEndian.Uint64(fr.scratch[:]), nil
}

func (fr *frameReader) uint64s(field string) ([]uint64, error) {
	count, err := fr.uint64(field + " count")
	if err != nil {
		return nil, err
	}
	vals := make([]uint64, 0, min(count, readChunk/8))
	for i := uint64(0); i < count; i++ {
		v, err := fr.uint64(field)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (fr *frameReader) bytes(n uint64, field string) ([]byte, error) {
	if n > math.MaxInt {
		return nil, fmt.Errorf("%w: %s length %d", ErrLengthOverflow, field, n)
	}
	buf := make([]byte, 0, min(n, readChunk))
	for uint64(len(buf)) < n {
		start := len(buf)
		step := int(min(n-uint64(start), readChunk))
		buf = slices.Grow(buf, step)[:start+step]
		read, err := io.ReadFull(fr.r, buf[start:])
		fr.consumed += int64(read)
		if err != nil {
			return nil, fr.fail(field, err)
		}
	}
	return buf, nil
}

func (fr *frameReader) fail(field string, err error) error {
	switch {
	case fr.consumed == 0 && err == io.EOF:
		// Nothing of this frame was read: the stream ended between frames.
		return io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: reading %s after %d bytes", ErrTruncated, field, fr.consumed)
	default:
		return fmt.Errorf("codec: reading %s: %w", field, err)
	}
}
