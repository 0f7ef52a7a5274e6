package packet

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Field bounds enforced at decode time, not in handlers.
const (
	MaxInventorySlot = 20
	MaxSpellSlot     = 35
	MaxQuantity      = 10000
	MaxCoord         = 100
	MaxHeading       = 4

	MaxUsernameLen = 20
	MaxChatLen     = 255
	MaxClanNameLen = 30
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Reader decodes client command fields from a decrypted payload.
// Byte 0 is always the opcode. The first field that fails validation or
// runs past the payload sets a sticky error; subsequent reads return zero
// values. Callers check Err() once after decoding.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// Err returns the first decoding error, or nil if every read so far was valid.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.data) {
		r.fail("opcode %d: short read at offset %d", r.Opcode(), r.off)
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.err != nil {
		return 0
	}
	if r.off+2 > len(r.data) {
		r.fail("opcode %d: short read at offset %d", r.Opcode(), r.off)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.data) {
		r.fail("opcode %d: short read at offset %d", r.Opcode(), r.off)
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadS reads a u16-LE-length-prefixed UTF-8 string of at most max bytes.
func (r *Reader) ReadS(max int) string {
	n := int(r.ReadH())
	if r.err != nil {
		return ""
	}
	if n > max {
		r.fail("opcode %d: string length %d exceeds max %d", r.Opcode(), n, max)
		return ""
	}
	if r.off+n > len(r.data) {
		r.fail("opcode %d: string length %d exceeds remaining %d", r.Opcode(), n, len(r.data)-r.off)
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// ReadU reads a u16-LE-length-prefixed UTF-16LE string of at most max bytes.
func (r *Reader) ReadU(max int) string {
	n := int(r.ReadH())
	if r.err != nil {
		return ""
	}
	if n > max || n%2 != 0 {
		r.fail("opcode %d: utf16 length %d invalid (max %d)", r.Opcode(), n, max)
		return ""
	}
	if r.off+n > len(r.data) {
		r.fail("opcode %d: utf16 length %d exceeds remaining %d", r.Opcode(), n, len(r.data)-r.off)
		return ""
	}
	raw := r.data[r.off : r.off+n]
	r.off += n
	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		r.fail("opcode %d: utf16 decode: %v", r.Opcode(), err)
		return ""
	}
	return string(decoded)
}

// ReadSlot reads a 1-byte slot index and validates 1..max.
func (r *Reader) ReadSlot(max int) int {
	v := int(r.ReadC())
	if r.err != nil {
		return 0
	}
	if v < 1 || v > max {
		r.fail("opcode %d: slot %d out of range 1..%d", r.Opcode(), v, max)
		return 0
	}
	return v
}

// ReadQuantity reads a u16 quantity and validates 1..MaxQuantity.
func (r *Reader) ReadQuantity() int {
	v := int(r.ReadH())
	if r.err != nil {
		return 0
	}
	if v < 1 || v > MaxQuantity {
		r.fail("opcode %d: quantity %d out of range 1..%d", r.Opcode(), v, MaxQuantity)
		return 0
	}
	return v
}

// ReadCoord reads a 1-byte coordinate and validates 1..MaxCoord.
func (r *Reader) ReadCoord() int {
	v := int(r.ReadC())
	if r.err != nil {
		return 0
	}
	if v < 1 || v > MaxCoord {
		r.fail("opcode %d: coordinate %d out of range 1..%d", r.Opcode(), v, MaxCoord)
		return 0
	}
	return v
}

// ReadHeading reads a 1-byte heading and validates 1..4 (N/E/S/W).
func (r *Reader) ReadHeading() int {
	v := int(r.ReadC())
	if r.err != nil {
		return 0
	}
	if v < 1 || v > MaxHeading {
		r.fail("opcode %d: heading %d out of range 1..%d", r.Opcode(), v, MaxHeading)
		return 0
	}
	return v
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
