package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrame bounds a single client frame when the deployment does
// not configure its own limit (network.max_frame).
const DefaultMaxFrame = 8192

// frameOverhead is the 2-byte LE length header, counted in the length.
const frameOverhead = 2

// ReadFrame reads one packet frame from r, rejecting payloads larger than
// maxFrame (0 selects DefaultMaxFrame).
// Wire format: [2 bytes LE: total length including header][payload].
// Payload byte 0 is the opcode. Returns the payload bytes.
func ReadFrame(r io.Reader, maxFrame int) ([]byte, error) {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	var header [frameOverhead]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	payloadLen := totalLen - frameOverhead
	if payloadLen <= 0 || payloadLen > maxFrame {
		return nil, fmt.Errorf("invalid frame length: %d", totalLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes one packet frame to w.
// Wire format: [2 bytes LE: len(data)+2][data].
func WriteFrame(w io.Writer, data []byte) error {
	totalLen := len(data) + frameOverhead
	if totalLen > 0xFFFF {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}
	var header [frameOverhead]byte
	binary.LittleEndian.PutUint16(header[:], uint16(totalLen))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
