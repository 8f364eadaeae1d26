// Command cff-gateway ingests a compact-frame byte stream from a serial
// link (or a recorded replay log), parses frames, and drives an optional
// GPIO activity indicator per parsed frame.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rkeelan/cff-gateway/internal/config"
	"github.com/rkeelan/cff-gateway/internal/frame"
	"github.com/rkeelan/cff-gateway/internal/indicator"
	"github.com/rkeelan/cff-gateway/internal/link"
	"github.com/rkeelan/cff-gateway/internal/replay"
	"github.com/rkeelan/cff-gateway/internal/ring"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./cff-gateway.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	indicatorLine := 0
	if cfg.Indicator.Enable {
		indicatorLine = cfg.Indicator.Line
	}
	ind, err := indicator.Open(cfg.Indicator.Chip, indicatorLine)
	if err != nil {
		log.Fatalf("indicator open failed: %v", err)
	}
	defer ind.Close()

	var recorder *replay.Writer
	if cfg.Record.Enable {
		recorder, err = replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			log.Fatalf("record open failed: %v", err)
		}
		defer recorder.Close()
	}

	onFrame := func(d frame.Descriptor) {
		ind.Pulse()

		if recorder == nil {
			return
		}
		payload := make([]byte, d.PayloadSize)
		if err := frame.CopyPayload(d, payload); err != nil {
			log.Printf("record: copy payload failed: %v", err)
			return
		}
		encoded := make([]byte, len(payload)+10)
		if err := frame.Encode(d, payload, encoded); err != nil {
			log.Printf("record: encode failed: %v", err)
			return
		}
		if err := recorder.WriteFrame(time.Now(), encoded); err != nil {
			log.Printf("record: write failed: %v", err)
		}
	}

	log.Printf("cff-gateway starting")

	if cfg.Replay.Enable {
		runReplay(ctx, cfg, onFrame)
		return
	}

	rb, err := ring.New(make([]byte, cfg.Ring.CapacityBytes))
	if err != nil {
		log.Fatalf("ring init failed: %v", err)
	}

	svc := link.New(link.Config{Device: cfg.Link.Device, Baud: cfg.Link.BaudRate})
	if err := svc.Start(ctx, rb, onFrame); err != nil {
		log.Fatalf("link start failed: %v", err)
	}
	defer svc.Close()

	log.Printf("link device=%s baud=%d ring_bytes=%d", cfg.Link.Device, cfg.Link.BaudRate, cfg.Ring.CapacityBytes)

	<-ctx.Done()
	log.Printf("cff-gateway stopping")
}

func runReplay(ctx context.Context, cfg config.Config, onFrame func(frame.Descriptor)) {
	f, err := os.Open(cfg.Replay.Path)
	if err != nil {
		log.Fatalf("replay open failed: %v", err)
	}
	defer f.Close()

	records, err := replay.NewReader(f).ReadAll()
	if err != nil {
		log.Fatalf("replay read failed: %v", err)
	}

	log.Printf("replaying %s speed=%.2fx loop=%v", cfg.Replay.Path, cfg.Replay.Speed, cfg.Replay.Loop)

	rb, err := ring.New(make([]byte, cfg.Ring.CapacityBytes))
	if err != nil {
		log.Fatalf("ring init failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- replay.Play(records, cfg.Replay.Speed, cfg.Replay.Loop, nil, func(raw []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := rb.Append(raw); err != nil {
				log.Printf("replay: ring append failed: %v", err)
				return nil
			}
			frame.ParseFrames(rb, onFrame)
			return nil
		})
	}()

	select {
	case <-ctx.Done():
		log.Printf("cff-gateway stopping")
	case err := <-done:
		if err != nil {
			log.Printf("replay stopped: %v", err)
		}
	}
}
