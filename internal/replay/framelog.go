// Package replay implements capture and playback of encoded frame streams
// to and from a line-oriented text log, so a serial link that produced a
// bug can be replayed byte-for-byte without the hardware attached.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rkeelan/cff-gateway/internal/frame"
	"github.com/rkeelan/cff-gateway/internal/ring"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<counter>,<hex>
//   where t_ns is nanoseconds since START (monotonic), counter is the
//   frame's own frame_counter field written in decimal (kept alongside the
//   bytes as a redundant cross-check against a hand-edited or truncated
//   log), and hex is the complete encoded frame (preamble through payload
//   CRC).
//
// Every data line must decode to exactly one well-formed frame: ReadAll
// and WriteFrame both validate this by running the bytes through the
// frame parser, so the log can never hold a line that a live link could
// not have produced.

// Record is one line of a frame log: either a START marker (Frame == nil)
// or a captured frame at a relative timestamp.
type Record struct {
	At           time.Duration
	FrameCounter uint16
	Frame        []byte
}

// decodeFrame validates that b is exactly one well-formed encoded frame
// (no leading garbage, no trailing bytes) and returns its frame counter.
func decodeFrame(b []byte) (uint16, error) {
	rb, err := ring.New(make([]byte, len(b)))
	if err != nil {
		return 0, err
	}
	if err := rb.Append(b); err != nil {
		return 0, err
	}
	desc, err := frame.ParseFrame(rb)
	if err != nil {
		return 0, fmt.Errorf("not a well-formed frame: %w", err)
	}
	if rb.Used() != 0 {
		return 0, fmt.Errorf("%d trailing byte(s) after frame", rb.Used())
	}
	return desc.FrameCounter, nil
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	// Allow reasonably large frames.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{At: 0, Frame: nil})
			continue
		}

		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid replay line (want <t_ns>,<counter>,<hex>): %q", line)
		}
		tsStr := strings.TrimSpace(fields[0])
		counterStr := strings.TrimSpace(fields[1])
		hexStr := strings.TrimSpace(fields[2])
		if tsStr == "" || counterStr == "" || hexStr == "" {
			return nil, fmt.Errorf("invalid replay line (empty field): %q", line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid replay timestamp %q: %w", tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
		}

		loggedCounter, err := strconv.ParseUint(counterStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid replay frame counter %q: %w", counterStr, err)
		}

		hexStr = strings.ReplaceAll(hexStr, " ", "")
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("invalid replay hex frame: %w", err)
		}

		counter, err := decodeFrame(b)
		if err != nil {
			return nil, fmt.Errorf("invalid replay frame: %w", err)
		}
		if counter != uint16(loggedCounter) {
			return nil, fmt.Errorf("replay line counter %d does not match decoded frame counter %d", loggedCounter, counter)
		}

		recs = append(recs, Record{At: time.Duration(tsNs) * time.Nanosecond, FrameCounter: counter, Frame: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

// WriteFrame appends one already-encoded frame (as produced by
// frame.Builder.Build) to the log. It refuses to record bytes that don't
// decode to a single well-formed frame, since a log entry the reader
// can't validate on the way back in is worse than no entry at all.
func (ww *Writer) WriteFrame(now time.Time, encoded []byte) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	if encoded == nil {
		return errors.New("frame is nil")
	}

	counter, err := decodeFrame(encoded)
	if err != nil {
		return fmt.Errorf("refusing to record invalid frame: %w", err)
	}

	// Use monotonic component of time when available.
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	if _, err := fmt.Fprintf(ww.w, "%d,%d,%s\n", d.Nanoseconds(), counter, hex.EncodeToString(encoded)); err != nil {
		return err
	}
	return nil
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing, feeding the raw bytes
// of each captured frame into cb as if a serial link had produced them.
//
// The provided callback is invoked for each record that contains a frame
// (Record.Frame != nil). START markers are honored by resetting the
// origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half
// speed.
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(frame []byte) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin time.Duration
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Frame == nil {
				// START marker.
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Frame); err != nil {
				return err
			}

			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
