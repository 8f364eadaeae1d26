// Package link owns the serial connection to the device producing a CFF
// byte stream and feeds the raw bytes into a ring buffer for the frame
// parser to consume.
package link

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rkeelan/cff-gateway/internal/frame"
	"github.com/rkeelan/cff-gateway/internal/ring"
)

// Config controls the serial link.
type Config struct {
	Device string
	Baud   int
}

// Service owns a background goroutine that reads from the serial device,
// appends the bytes it reads into a ring buffer, and invokes onFrame for
// every frame the parser resynchronizes onto.
type Service struct {
	cfg Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closer *os.File

	framesParsed atomic.Int64
	bytesRead    atomic.Int64
	lastErr      atomic.Value // string
}

func New(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Start opens the serial device and begins reading frames in the
// background. onFrame is called from the reader goroutine for every frame
// successfully parsed; it must not retain the descriptor's payload beyond
// the call without copying it (see frame.CopyPayload).
func (s *Service) Start(ctx context.Context, rb *ring.Buffer, onFrame func(frame.Descriptor)) error {
	if s == nil {
		return fmt.Errorf("link service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if rb == nil {
		return fmt.Errorf("ring buffer is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	f, err := openSerial(s.cfg.Device, s.cfg.Baud)
	if err != nil {
		return fmt.Errorf("link open failed device=%s baud=%d: %w", s.cfg.Device, s.cfg.Baud, err)
	}
	s.closer = f

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.readLoop(childCtx, f, rb, onFrame)

	return nil
}

func (s *Service) readLoop(ctx context.Context, f *os.File, rb *ring.Buffer, onFrame func(frame.Descriptor)) {
	defer s.wg.Done()
	defer func() { _ = f.Close() }()

	log.Printf("link enabled device=%s baud=%d", s.cfg.Device, s.cfg.Baud)

	chunk := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := f.Read(chunk)
		if n > 0 {
			s.bytesRead.Add(int64(n))
			if appendErr := rb.Append(chunk[:n]); appendErr != nil {
				// Ring is full: drop the oldest bytes to make room rather
				// than stall the read loop, since a stalled reader would
				// eventually block the kernel's serial buffer too.
				drop := make([]byte, n)
				_ = rb.Consume(drop)
				_ = rb.Append(chunk[:n])
				s.setError(fmt.Sprintf("ring overrun, dropped %d bytes", n))
			}
			count := frame.ParseFrames(rb, onFrame)
			if count > 0 {
				s.framesParsed.Add(int64(count))
			}
		}
		if err != nil {
			s.setError(err.Error())
			return
		}
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) FramesParsed() int64 { return s.framesParsed.Load() }
func (s *Service) BytesRead() int64    { return s.bytesRead.Load() }

func (s *Service) LastError() string {
	v := s.lastErr.Load()
	if v == nil {
		return ""
	}
	return v.(string)
}

func (s *Service) setError(msg string) {
	s.lastErr.Store(msg)
}
