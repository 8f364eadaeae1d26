// Package ring implements the single-producer/single-consumer byte FIFO
// that the frame parser uses as its ingest surface. Storage is
// caller-owned: New wraps a caller-supplied slice rather than allocating
// one, matching the codec's no-heap-allocation-inside-the-core discipline.
package ring

import (
	"sync"

	"github.com/rkeelan/cff-gateway/internal/cferr"
	"github.com/rkeelan/cff-gateway/internal/crc16"
)

// Buffer is a fixed-capacity circular byte FIFO. The zero value is not
// usable; construct one with New or Init.
//
// Buffer is safe for one appender and one consumer goroutine to use
// concurrently. A single mutex guards the indices and free-space count;
// that's a stronger guarantee than the SPSC contract strictly requires
// (true lock-free SPSC would let producer and consumer proceed without
// blocking each other) but it is trivially correct, and correctness is
// what matters for a resynchronizing parser scanning live data. Two
// producers, or two consumers, sharing a Buffer is not supported.
type Buffer struct {
	mu           sync.Mutex
	storage      []byte
	appendIndex  int
	consumeIndex int
	freeSpace    int
}

// New wraps storage as a new, empty ring buffer. It fails with
// cferr.ErrBufferTooSmall if storage is empty.
func New(storage []byte) (*Buffer, error) {
	b := &Buffer{}
	if err := b.Init(storage); err != nil {
		return nil, err
	}
	return b, nil
}

// Init (re)initializes b in place over storage: indices reset to zero,
// free space is set to the full capacity, and storage is zeroed.
func (b *Buffer) Init(storage []byte) error {
	if len(storage) == 0 {
		return cferr.ErrBufferTooSmall
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range storage {
		storage[i] = 0
	}
	b.storage = storage
	b.appendIndex = 0
	b.consumeIndex = 0
	b.freeSpace = len(storage)
	return nil
}

// Capacity returns the fixed size of the backing storage.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.storage)
}

// Free returns the number of bytes currently available to append.
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freeSpace
}

// Used returns the number of bytes currently available to consume.
func (b *Buffer) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used()
}

func (b *Buffer) used() int { return len(b.storage) - b.freeSpace }

// Append copies items into the buffer, splitting the copy across the wrap
// boundary if necessary. It fails with cferr.ErrInsufficientSpace if there
// is not enough free space for all of items.
func (b *Buffer) Append(items []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(items)
	if n > b.freeSpace {
		return cferr.ErrInsufficientSpace
	}
	if n == 0 {
		return nil
	}

	capacity := len(b.storage)
	firstRun := capacity - b.appendIndex
	if firstRun > n {
		firstRun = n
	}
	copy(b.storage[b.appendIndex:], items[:firstRun])
	if remaining := n - firstRun; remaining > 0 {
		copy(b.storage, items[firstRun:])
	}

	b.appendIndex = (b.appendIndex + n) % capacity
	b.freeSpace -= n
	return nil
}

// Consume copies bytes out of the buffer into out, honoring wrap-around,
// and advances the consume index. It fails with cferr.ErrInsufficientSpace
// if fewer than len(out) bytes are available.
func (b *Buffer) Consume(out []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(out)
	if n > b.used() {
		return cferr.ErrInsufficientSpace
	}
	if n == 0 {
		return nil
	}

	capacity := len(b.storage)
	firstRun := capacity - b.consumeIndex
	if firstRun > n {
		firstRun = n
	}
	copy(out[:firstRun], b.storage[b.consumeIndex:])
	if remaining := n - firstRun; remaining > 0 {
		copy(out[firstRun:], b.storage[:remaining])
	}

	b.consumeIndex = (b.consumeIndex + n) % capacity
	b.freeSpace += n
	return nil
}

// Advance discards n bytes from the front of the buffer without copying
// them out, as if they had been consumed. The frame parser's one-byte
// resynchronization step uses this, and it fails the same way Consume
// would.
func (b *Buffer) Advance(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.used() {
		return cferr.ErrInsufficientSpace
	}
	if n == 0 {
		return nil
	}
	b.consumeIndex = (b.consumeIndex + n) % len(b.storage)
	b.freeSpace += n
	return nil
}

// PeekByte reads the byte at logical offset from the consume index without
// advancing it.
func (b *Buffer) PeekByte(offset int) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || offset >= b.used() {
		return 0, cferr.ErrOutOfRange
	}
	return b.storage[b.logicalIndex(offset)], nil
}

// PeekUint16LE reads a little-endian u16 at logical offset from the
// consume index, honoring wrap-around, without advancing it.
func (b *Buffer) PeekUint16LE(offset int) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || offset+2 > b.used() {
		return 0, cferr.ErrOutOfRange
	}
	lo := b.storage[b.logicalIndex(offset)]
	hi := b.storage[b.logicalIndex(offset+1)]
	return uint16(lo) | uint16(hi)<<8, nil
}

// WrapAwareCRC computes CRC-16/CCITT-FALSE over count bytes starting at
// logical offset from the consume index, continuing the running checksum
// across the wrap boundary if the range straddles it.
func (b *Buffer) WrapAwareCRC(offset, count int) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || count < 0 || offset+count > b.used() {
		return 0, cferr.ErrOutOfRange
	}
	if count == 0 {
		return crc16.Init, nil
	}

	start := b.logicalIndex(offset)
	capacity := len(b.storage)
	firstRun := capacity - start
	if firstRun > count {
		firstRun = count
	}

	crc := crc16.Update(crc16.Init, b.storage[start:start+firstRun])
	if remaining := count - firstRun; remaining > 0 {
		crc = crc16.Update(crc, b.storage[:remaining])
	}
	return crc, nil
}

// logicalIndex maps a logical offset from the consume index to a physical
// storage index. Callers must hold b.mu.
func (b *Buffer) logicalIndex(offset int) int {
	return (b.consumeIndex + offset) % len(b.storage)
}

// PhysicalIndex converts a logical offset (relative to the current consume
// index) into an absolute index into the backing storage array. Frame
// descriptors capture this so they can still locate their payload after
// ParseFrame has advanced the consume index past it.
func (b *Buffer) PhysicalIndex(offset int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logicalIndex(offset)
}

// CopyPhysical copies count bytes starting at the absolute physical index
// start into out, wrapping around the backing array as needed. It
// addresses storage directly instead of relative to the current consume
// index, which is what lets a frame descriptor reference payload bytes the
// consume index has already advanced past.
func (b *Buffer) CopyPhysical(start, count int, out []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(out) < count {
		return cferr.ErrBufferTooSmall
	}
	if count == 0 {
		return nil
	}

	capacity := len(b.storage)
	firstRun := capacity - start
	if firstRun > count {
		firstRun = count
	}
	copy(out[:firstRun], b.storage[start:start+firstRun])
	if remaining := count - firstRun; remaining > 0 {
		copy(out[firstRun:count], b.storage[:remaining])
	}
	return nil
}
