// Package frame implements the compact frame format's stateful encoder and
// the streaming, resynchronizing decoder that reads frames back out of a
// ring buffer.
package frame

import (
	"github.com/rkeelan/cff-gateway/internal/cferr"
	"github.com/rkeelan/cff-gateway/internal/crc16"
	"github.com/rkeelan/cff-gateway/internal/wire"
)

// CalculateFrameSize returns the total wire size of a frame carrying
// payloadSize bytes of payload.
func CalculateFrameSize(payloadSize int) int {
	return wire.FrameSize(payloadSize)
}

// Builder is a deterministic, stateful frame encoder. It writes into a
// caller-owned buffer and carries a monotonic 16-bit frame counter that
// wraps modulo 2^16. The zero value is not usable; construct one with
// NewBuilder or Init.
type Builder struct {
	buffer       []byte
	frameCounter uint16
}

// NewBuilder constructs a Builder writing into buffer.
func NewBuilder(buffer []byte) (*Builder, error) {
	b := &Builder{}
	if err := b.Init(buffer); err != nil {
		return nil, err
	}
	return b, nil
}

// Init (re)initializes b to write into buffer and resets the frame counter
// to zero. It fails with cferr.ErrNilBuffer if buffer is nil, or
// cferr.ErrBufferTooSmall if buffer cannot hold the smallest possible
// frame.
func (b *Builder) Init(buffer []byte) error {
	if buffer == nil {
		return cferr.ErrNilBuffer
	}
	if len(buffer) < wire.MinFrameSize {
		return cferr.ErrBufferTooSmall
	}
	b.buffer = buffer
	b.frameCounter = 0
	return nil
}

// Counter returns the frame counter that the next call to Build will use.
func (b *Builder) Counter() uint16 { return b.frameCounter }

// Build writes one complete frame for payload beginning at offset 0 of the
// builder's buffer, and returns the slice of the buffer that the frame
// occupies. On success the frame counter advances (wrapping modulo 2^16);
// on failure it does not.
//
// payload must be non-nil even when empty — this mirrors the reference
// implementation's documented API invariant that a caller must always
// supply a valid pointer, and gives Build a way to reject a genuine
// programming mistake (a forgotten payload argument) instead of silently
// building an empty-payload frame for it.
func (b *Builder) Build(payload []byte) ([]byte, error) {
	if len(payload) > wire.MaxPayloadSize {
		return nil, cferr.ErrPayloadTooLarge
	}
	if payload == nil {
		return nil, cferr.ErrNilBuffer
	}

	frameSize := wire.FrameSize(len(payload))
	if frameSize > len(b.buffer) {
		return nil, cferr.ErrBufferTooSmall
	}

	buf := b.buffer[:frameSize]

	buf[0] = wire.PreambleByte0
	buf[1] = wire.PreambleByte1
	wire.PutUint16LE(buf[2:4], b.frameCounter)
	wire.PutUint16LE(buf[4:6], uint16(len(payload)))
	headerCRC := crc16.Compute(buf[:6])
	wire.PutUint16LE(buf[6:8], headerCRC)

	copy(buf[wire.HeaderSize:], payload)

	payloadCRC := crc16.Compute(payload)
	wire.PutUint16LE(buf[wire.HeaderSize+len(payload):], payloadCRC)

	b.frameCounter = uint16((uint32(b.frameCounter) + 1) % wire.CounterModulus)
	return buf, nil
}
