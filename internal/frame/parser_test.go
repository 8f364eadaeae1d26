package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rkeelan/cff-gateway/internal/cferr"
	"github.com/rkeelan/cff-gateway/internal/ring"
	"github.com/rkeelan/cff-gateway/internal/wire"
)

// buildFrameBytes builds a single frame for payload using a fresh Builder
// and returns the encoded bytes (a copy, independent of the builder's
// internal buffer).
func buildFrameBytes(t *testing.T, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, wire.FrameSize(len(payload)))
	b, err := NewBuilder(buf)
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.Build(payload)
	if err != nil {
		t.Fatal(err)
	}
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp
}

func newFilledRing(t *testing.T, capacity int, data []byte) *ring.Buffer {
	t.Helper()
	rb, err := ring.New(make([]byte, capacity))
	if err != nil {
		t.Fatal(err)
	}
	if err := rb.Append(data); err != nil {
		t.Fatal(err)
	}
	return rb
}

func TestParseFrame_RoundTrip(t *testing.T) {
	payload := []byte("Hello")
	frameBytes := buildFrameBytes(t, payload)
	rb := newFilledRing(t, 64, frameBytes)

	desc, err := ParseFrame(rb)
	if err != nil {
		t.Fatal(err)
	}
	if desc.FrameCounter != 0 {
		t.Fatalf("FrameCounter = %d, want 0", desc.FrameCounter)
	}
	if int(desc.PayloadSize) != len(payload) {
		t.Fatalf("PayloadSize = %d, want %d", desc.PayloadSize, len(payload))
	}

	out := make([]byte, desc.PayloadSize)
	if err := CopyPayload(desc, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("CopyPayload = %q, want %q", out, payload)
	}
	if rb.Used() != 0 {
		t.Fatalf("Used() = %d after parsing the only frame, want 0", rb.Used())
	}
}

func TestParseFrame_AllBytesPayload(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	frameBytes := buildFrameBytes(t, payload)
	rb := newFilledRing(t, 512, frameBytes)

	desc, err := ParseFrame(rb)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, desc.PayloadSize)
	if err := CopyPayload(desc, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("all-bytes payload did not round trip")
	}
	if out[0] != 0x00 || out[127] != 0x7F || out[128] != 0x80 || out[255] != 0xFF {
		t.Fatalf("spot-check bytes wrong: %02X %02X %02X %02X", out[0], out[127], out[128], out[255])
	}
}

func TestParseFrame_PayloadContainingPreamble(t *testing.T) {
	payload := []byte{0xFA, 0xCE, 0x00, 0x01, 0x02}
	frameBytes := buildFrameBytes(t, payload)
	rb := newFilledRing(t, 64, frameBytes)

	desc, err := ParseFrame(rb)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, desc.PayloadSize)
	_ = CopyPayload(desc, out)
	if !bytes.Equal(out, payload) {
		t.Fatalf("payload = % X, want % X", out, payload)
	}
}

func TestParseFrame_IncompleteFrame_DoesNotAdvance(t *testing.T) {
	frameBytes := buildFrameBytes(t, []byte("Hello"))
	for m := 1; m < len(frameBytes); m++ {
		rb := newFilledRing(t, 64, frameBytes[:m])
		before := rb.Used()
		_, err := ParseFrame(rb)
		if !errors.Is(err, cferr.ErrIncompleteFrame) {
			t.Fatalf("m=%d: error = %v, want ErrIncompleteFrame", m, err)
		}
		if rb.Used() != before {
			t.Fatalf("m=%d: Used() changed from %d to %d on incomplete parse", m, before, rb.Used())
		}
	}
}

func TestParseFrames_ConcatenatedStream(t *testing.T) {
	f1 := buildFrameBytes(t, []byte("Hello"))
	f2 := buildFrameBytesWithCounter(t, []byte("World"), 1)

	stream := append(append([]byte{}, f1...), f2...)
	rb := newFilledRing(t, len(stream)+8, stream)

	var got [][]byte
	count := ParseFrames(rb, func(d Descriptor) {
		out := make([]byte, d.PayloadSize)
		_ = CopyPayload(d, out)
		got = append(got, out)
	})

	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if string(got[0]) != "Hello" || string(got[1]) != "World" {
		t.Fatalf("got = %q, want [Hello World]", got)
	}
}

func TestParseFrames_MidStreamCorruptionRecovers(t *testing.T) {
	f1 := buildFrameBytes(t, []byte("Hello"))
	f2 := buildFrameBytesWithCounter(t, []byte("World"), 1)
	stream := append(append([]byte{}, f1...), f2...)

	// Corrupt the second frame's second preamble byte.
	stream[len(f1)+1] ^= 0xFF

	rb := newFilledRing(t, len(stream)+8, stream)

	var got [][]byte
	count := ParseFrames(rb, func(d Descriptor) {
		out := make([]byte, d.PayloadSize)
		_ = CopyPayload(d, out)
		got = append(got, out)
	})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if string(got[0]) != "Hello" {
		t.Fatalf("got = %q, want [Hello]", got)
	}
}

func TestParseFrames_SingleByteCorruptionCostsExactlyOneFrame(t *testing.T) {
	payloads := [][]byte{[]byte("aaa"), []byte("bbbb"), []byte("ccccc")}
	var stream []byte
	for i, p := range payloads {
		stream = append(stream, buildFrameBytesWithCounter(t, p, uint16(i))...)
	}

	for i := range stream {
		corrupted := append([]byte{}, stream...)
		corrupted[i] ^= 0xFF

		rb := newFilledRing(t, len(corrupted)+8, corrupted)
		count := ParseFrames(rb, func(Descriptor) {})
		if count != len(payloads)-1 {
			t.Fatalf("byte %d: count = %d, want %d", i, count, len(payloads)-1)
		}
	}
}

func TestParseFrames_NoFalsePositivesOnGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44, 0x55}, 40)
	rb := newFilledRing(t, len(garbage)+8, garbage)

	count := ParseFrames(rb, func(Descriptor) { t.Fatal("callback invoked on pure garbage") })
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestParseFrames_IdempotentScan(t *testing.T) {
	f := buildFrameBytes(t, []byte("idempotent"))
	rb := newFilledRing(t, len(f)+8, f)

	first := ParseFrames(rb, func(Descriptor) {})
	usedAfterFirst := rb.Used()

	second := ParseFrames(rb, func(Descriptor) {})

	if first != 1 {
		t.Fatalf("first pass = %d, want 1", first)
	}
	if second != 0 {
		t.Fatalf("second pass = %d, want 0", second)
	}
	if rb.Used() != usedAfterFirst {
		t.Fatalf("Used() changed on idempotent second scan: %d -> %d", usedAfterFirst, rb.Used())
	}
}

func TestParseFrames_PartialInputYieldsNoFrames(t *testing.T) {
	f := buildFrameBytes(t, []byte("partial"))
	for m := 1; m < len(f); m++ {
		rb := newFilledRing(t, len(f)+8, f[:m])
		count := ParseFrames(rb, func(Descriptor) { t.Fatalf("m=%d: callback invoked on partial input", m) })
		if count != 0 {
			t.Fatalf("m=%d: count = %d, want 0", m, count)
		}
	}
}

func TestParseFrame_PayloadStraddlesWrapBoundary(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20)
	frameBytes := buildFrameBytes(t, payload)

	capacity := len(frameBytes)
	rb, err := ring.New(make([]byte, capacity))
	if err != nil {
		t.Fatal(err)
	}

	// Prime the buffer so the append index sits 15 bytes from the end,
	// putting the wrap boundary inside the payload (which starts at byte
	// 8) rather than in the header or trailer.
	const primeLen = 15
	if err := rb.Append(make([]byte, primeLen)); err != nil {
		t.Fatal(err)
	}
	if err := rb.Consume(make([]byte, primeLen)); err != nil {
		t.Fatal(err)
	}

	if err := rb.Append(frameBytes); err != nil {
		t.Fatal(err)
	}

	desc, err := ParseFrame(rb)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, desc.PayloadSize)
	if err := CopyPayload(desc, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("wrapped payload = % X, want % X", out, payload)
	}
}

func TestParseFramesLinear_RoundTripsConcatenatedStream(t *testing.T) {
	f1 := buildFrameBytes(t, []byte("Hello"))
	f2 := buildFrameBytesWithCounter(t, []byte("World"), 1)
	stream := append(append([]byte{}, f1...), f2...)

	var got [][]byte
	count, err := ParseFramesLinear(stream, func(d Descriptor) {
		out := make([]byte, d.PayloadSize)
		_ = CopyPayload(d, out)
		got = append(got, out)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if string(got[0]) != "Hello" || string(got[1]) != "World" {
		t.Fatalf("got = %q, want [Hello World]", got)
	}
}

func TestParseFramesLinear_EmptyInputYieldsNoFrames(t *testing.T) {
	count, err := ParseFramesLinear(nil, func(Descriptor) { t.Fatal("callback invoked on empty input") })
	if err == nil {
		t.Fatal("expected error for empty input (zero-length ring storage)")
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

// buildFrameBytesWithCounter builds a frame whose counter is forced to a
// specific value, for constructing multi-frame test streams.
func buildFrameBytesWithCounter(t *testing.T, payload []byte, counter uint16) []byte {
	t.Helper()
	buf := make([]byte, wire.FrameSize(len(payload)))
	b, err := NewBuilder(buf)
	if err != nil {
		t.Fatal(err)
	}
	b.frameCounter = counter
	out, err := b.Build(payload)
	if err != nil {
		t.Fatal(err)
	}
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp
}
