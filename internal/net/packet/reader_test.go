package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payload builds a raw client packet: opcode followed by writer content.
func payload(opcode byte, build func(w *Writer)) []byte {
	w := NewWriterWithOpcode(opcode)
	if build != nil {
		build(w)
	}
	return w.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	data := payload(C_OPCODE_LOGIN, func(w *Writer) {
		w.WriteC(7)
		w.WriteH(1234)
		w.WriteD(-99)
		w.WriteS("gandalf")
		w.WriteU("¡hola señor!")
	})

	r := NewReader(data)
	assert.Equal(t, C_OPCODE_LOGIN, r.Opcode())
	assert.Equal(t, byte(7), r.ReadC())
	assert.Equal(t, uint16(1234), r.ReadH())
	assert.Equal(t, int32(-99), r.ReadD())
	assert.Equal(t, "gandalf", r.ReadS(MaxUsernameLen))
	assert.Equal(t, "¡hola señor!", r.ReadU(MaxChatLen))
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestReaderShortReadSticks(t *testing.T) {
	r := NewReader([]byte{C_OPCODE_WALK, 0x01})
	assert.Equal(t, byte(1), r.ReadC())
	assert.Equal(t, uint16(0), r.ReadH()) // past the end
	require.Error(t, r.Err())

	first := r.Err()
	assert.Equal(t, int32(0), r.ReadD())
	assert.Equal(t, "", r.ReadS(10))
	assert.Same(t, first, r.Err(), "first error must stick")
}

func TestReaderStringOverMax(t *testing.T) {
	data := payload(C_OPCODE_TALK, func(w *Writer) {
		w.WriteS("this name is way past the limit")
	})
	r := NewReader(data)
	assert.Equal(t, "", r.ReadS(MaxUsernameLen))
	require.Error(t, r.Err())
}

func TestReaderStringLengthLies(t *testing.T) {
	// Length prefix claims 50 bytes, payload has 3.
	w := NewWriterWithOpcode(C_OPCODE_TALK)
	w.WriteH(50)
	w.WriteBytes([]byte("abc"))
	r := NewReader(w.Bytes())
	assert.Equal(t, "", r.ReadS(100))
	require.Error(t, r.Err())
}

func TestReaderUTF16OddLength(t *testing.T) {
	w := NewWriterWithOpcode(C_OPCODE_TALK)
	w.WriteH(3)
	w.WriteBytes([]byte{0x41, 0x00, 0x42})
	r := NewReader(w.Bytes())
	assert.Equal(t, "", r.ReadU(MaxChatLen))
	require.Error(t, r.Err())
}

func TestReaderValidatedFields(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader)
		ok   bool
	}{
		{"slot in range", []byte{0, 20}, func(r *Reader) { r.ReadSlot(MaxInventorySlot) }, true},
		{"slot zero", []byte{0, 0}, func(r *Reader) { r.ReadSlot(MaxInventorySlot) }, false},
		{"slot over max", []byte{0, 21}, func(r *Reader) { r.ReadSlot(MaxInventorySlot) }, false},
		{"coord 100", []byte{0, 100}, func(r *Reader) { r.ReadCoord() }, true},
		{"coord 101", []byte{0, 101}, func(r *Reader) { r.ReadCoord() }, false},
		{"coord zero", []byte{0, 0}, func(r *Reader) { r.ReadCoord() }, false},
		{"heading west", []byte{0, 4}, func(r *Reader) { r.ReadHeading() }, true},
		{"heading five", []byte{0, 5}, func(r *Reader) { r.ReadHeading() }, false},
		{"quantity max", []byte{0, 0x10, 0x27}, func(r *Reader) { r.ReadQuantity() }, true},
		{"quantity over", []byte{0, 0x11, 0x27}, func(r *Reader) { r.ReadQuantity() }, false},
		{"quantity zero", []byte{0, 0, 0}, func(r *Reader) { r.ReadQuantity() }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			tt.read(r)
			if tt.ok {
				assert.NoError(t, r.Err())
			} else {
				assert.Error(t, r.Err())
			}
		})
	}
}

func TestConsoleMsgWire(t *testing.T) {
	data := ConsoleMsg("hello", FontWarning)
	require.NotEmpty(t, data)
	assert.Equal(t, S_OPCODE_CONSOLE_MSG, data[0])

	r := NewReader(data)
	assert.Equal(t, "hello", r.ReadU(MaxChatLen))
	assert.Equal(t, byte(FontWarning), r.ReadC())
	require.NoError(t, r.Err())
}

func TestChatOverHeadWire(t *testing.T) {
	data := ChatOverHead(42, "hi", 255, 128, 0)
	assert.Equal(t, S_OPCODE_CHAT_OVER_HEAD, data[0])

	r := NewReader(data)
	assert.Equal(t, "hi", r.ReadU(MaxChatLen))
	assert.Equal(t, uint16(42), r.ReadH())
	assert.Equal(t, byte(255), r.ReadC())
	assert.Equal(t, byte(128), r.ReadC())
	assert.Equal(t, byte(0), r.ReadC())
	require.NoError(t, r.Err())
}
