package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatchCallsHandler(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	var gotSess any
	var gotField byte
	reg.Register(C_OPCODE_WALK, []SessionState{StateInWorld}, func(sess any, r *Reader) {
		gotSess = sess
		gotField = r.ReadC()
	})

	marker := &struct{ name string }{"session"}
	err := reg.Dispatch(marker, StateInWorld, []byte{C_OPCODE_WALK, 3})
	require.NoError(t, err)
	assert.Same(t, marker, gotSess)
	assert.Equal(t, byte(3), gotField, "reader must start after the opcode byte")
}

func TestDispatchUnknownOpcode(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	err := reg.Dispatch(nil, StateInWorld, []byte{0xEE})
	require.Error(t, err)
	var unknown *ErrUnknownOpcode
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, byte(0xEE), unknown.Opcode)
}

func TestDispatchStateGate(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	called := false
	reg.Register(C_OPCODE_WALK, []SessionState{StateInWorld}, func(sess any, r *Reader) {
		called = true
	})

	err := reg.Dispatch(nil, StateConnected, []byte{C_OPCODE_WALK, 1})
	require.Error(t, err, "pre-login walk is a protocol error")
	assert.False(t, called)

	require.NoError(t, reg.Dispatch(nil, StateInWorld, []byte{C_OPCODE_WALK, 1}))
	assert.True(t, called)
}

func TestDispatchEmptyPacket(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	assert.Error(t, reg.Dispatch(nil, StateInWorld, nil))
}

func TestDispatchRecoversPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(C_OPCODE_WALK, []SessionState{StateInWorld}, func(sess any, r *Reader) {
		panic("handler bug")
	})
	err := reg.Dispatch(nil, StateInWorld, []byte{C_OPCODE_WALK})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}
