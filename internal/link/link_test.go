package link

import (
	"testing"
)

func TestService_FramesParsedAndBytesReadStartAtZero(t *testing.T) {
	s := New(Config{Device: "/dev/null", Baud: 115200})
	if s.FramesParsed() != 0 {
		t.Fatalf("FramesParsed() = %d, want 0", s.FramesParsed())
	}
	if s.BytesRead() != 0 {
		t.Fatalf("BytesRead() = %d, want 0", s.BytesRead())
	}
	if s.LastError() != "" {
		t.Fatalf("LastError() = %q, want empty", s.LastError())
	}
}

func TestService_StartRejectsNilArgs(t *testing.T) {
	s := New(Config{Device: "/dev/null"})
	if err := s.Start(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil ctx")
	}
}
