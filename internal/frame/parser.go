package frame

import (
	"errors"

	"github.com/rkeelan/cff-gateway/internal/cferr"
	"github.com/rkeelan/cff-gateway/internal/ring"
	"github.com/rkeelan/cff-gateway/internal/wire"
)

// Descriptor describes a successfully parsed frame. It borrows its payload
// from the ring buffer it was parsed out of rather than owning a copy: the
// payload bytes remain valid only until the ring is appended to past the
// point of overwriting them. A caller that wants to retain the payload
// past the current callback invocation must call CopyPayload.
type Descriptor struct {
	Preamble     [wire.PreambleSize]byte
	FrameCounter uint16
	PayloadSize  uint16
	HeaderCRC    uint16
	PayloadCRC   uint16

	ring         *ring.Buffer
	payloadStart int
}

// CopyPayload copies the descriptor's payload into out, honoring
// wrap-around in the backing ring buffer. It fails with
// cferr.ErrBufferTooSmall if out cannot hold PayloadSize bytes.
func CopyPayload(d Descriptor, out []byte) error {
	if len(out) < int(d.PayloadSize) {
		return cferr.ErrBufferTooSmall
	}
	return d.ring.CopyPhysical(d.payloadStart, int(d.PayloadSize), out)
}

// ParseFrame attempts to parse exactly one frame starting at the ring's
// current consume index. On success it advances the consume index by the
// frame's total size and returns a Descriptor; on any failure it leaves
// the consume index untouched.
//
// The state machine runs in the order the wire format lays the fields out:
// check there's enough data for a header, validate the preamble, validate
// the header CRC, check there's enough data for the declared payload, then
// validate the payload CRC.
func ParseFrame(rb *ring.Buffer) (Descriptor, error) {
	used := rb.Used()
	if used < wire.MinFrameSize {
		return Descriptor{}, cferr.ErrIncompleteFrame
	}

	b0, _ := rb.PeekByte(0)
	b1, _ := rb.PeekByte(1)
	if b0 != wire.PreambleByte0 || b1 != wire.PreambleByte1 {
		return Descriptor{}, cferr.ErrInvalidPreamble
	}

	counter, _ := rb.PeekUint16LE(2)
	payloadSize, _ := rb.PeekUint16LE(4)
	headerCRC, _ := rb.PeekUint16LE(6)

	computedHeaderCRC, _ := rb.WrapAwareCRC(0, 6)
	if computedHeaderCRC != headerCRC {
		return Descriptor{}, cferr.ErrInvalidHeaderCRC
	}

	frameSize := wire.FrameSize(int(payloadSize))
	if used < frameSize {
		return Descriptor{}, cferr.ErrIncompleteFrame
	}

	payloadCRC, _ := rb.PeekUint16LE(wire.HeaderSize + int(payloadSize))
	computedPayloadCRC, _ := rb.WrapAwareCRC(wire.HeaderSize, int(payloadSize))
	if computedPayloadCRC != payloadCRC {
		return Descriptor{}, cferr.ErrInvalidPayloadCRC
	}

	desc := Descriptor{
		Preamble:     [wire.PreambleSize]byte{b0, b1},
		FrameCounter: counter,
		PayloadSize:  payloadSize,
		HeaderCRC:    headerCRC,
		PayloadCRC:   payloadCRC,
		ring:         rb,
		payloadStart: rb.PhysicalIndex(wire.HeaderSize),
	}

	// Cannot fail: used >= frameSize was just checked above.
	_ = rb.Advance(frameSize)

	return desc, nil
}

// ParseFrames repeatedly parses frames out of rb, invoking callback for
// each one delivered, and returns the number of frames delivered.
//
// This is the resynchronizing streaming parser: after a candidate frame
// fails validation for any reason other than "incomplete", it slides the
// search origin forward by exactly one byte and tries again, so a single
// corrupted byte can cost at most one frame. incomplete_frame always stops
// the scan without advancing, since more bytes may still arrive.
func ParseFrames(rb *ring.Buffer, callback func(Descriptor)) int {
	count := 0
	for {
		used := rb.Used()
		if used < wire.MinFrameSize {
			return count
		}

		pos, found := scanForPreamble(rb, used)
		if !found {
			// No two-byte match is possible in the remaining window; keep
			// at most the trailing byte, since it may be the first half
			// of a preamble that hasn't fully arrived yet.
			if advance := used - 1; advance > 0 {
				_ = rb.Advance(advance)
			}
			return count
		}
		if pos > 0 {
			_ = rb.Advance(pos)
		}

		desc, err := ParseFrame(rb)
		switch {
		case err == nil:
			callback(desc)
			count++
		case errors.Is(err, cferr.ErrIncompleteFrame):
			return count
		default:
			// invalid_header_crc or invalid_payload_crc; invalid_preamble
			// cannot occur here since scanForPreamble already aligned on
			// one. Slide by exactly one byte and keep scanning.
			_ = rb.Advance(1)
		}
	}
}

// ParseFramesLinear is a convenience wrapper for callers who already hold a
// contiguous byte slice and don't want to manage a ring buffer themselves.
// It spins up a throwaway ring sized to fit data, appends data into it, and
// runs ParseFrames against that. The authoritative streaming API remains
// the ring-buffer form; this exists only because the reference
// implementation historically exposed a linear-buffer entry point too.
func ParseFramesLinear(data []byte, callback func(Descriptor)) (int, error) {
	storage := make([]byte, len(data))
	rb, err := ring.New(storage)
	if err != nil {
		return 0, err
	}
	if err := rb.Append(data); err != nil {
		return 0, err
	}
	return ParseFrames(rb, callback), nil
}

func scanForPreamble(rb *ring.Buffer, used int) (int, bool) {
	for i := 0; i+wire.PreambleSize <= used; i++ {
		b0, _ := rb.PeekByte(i)
		if b0 != wire.PreambleByte0 {
			continue
		}
		b1, _ := rb.PeekByte(i + 1)
		if b1 == wire.PreambleByte1 {
			return i, true
		}
	}
	return 0, false
}
