package frame

import (
	"github.com/rkeelan/cff-gateway/internal/cferr"
	"github.com/rkeelan/cff-gateway/internal/wire"
)

// Encode reconstructs the exact on-wire bytes of a previously parsed
// frame into out, using the fields already validated by ParseFrame rather
// than recomputing CRCs. out must be at least wire.FrameSize(len(payload))
// bytes; payload must be the same bytes CopyPayload would produce for d.
//
// This lets a caller capture frames it already parsed off a live link to
// a replay log without keeping the ring buffer around.
func Encode(d Descriptor, payload []byte, out []byte) error {
	need := wire.FrameSize(len(payload))
	if len(out) < need {
		return cferr.ErrBufferTooSmall
	}

	out[0] = d.Preamble[0]
	out[1] = d.Preamble[1]
	wire.PutUint16LE(out[2:4], d.FrameCounter)
	wire.PutUint16LE(out[4:6], uint16(len(payload)))
	wire.PutUint16LE(out[6:8], d.HeaderCRC)
	copy(out[wire.HeaderSize:], payload)
	wire.PutUint16LE(out[wire.HeaderSize+len(payload):], d.PayloadCRC)
	return nil
}
