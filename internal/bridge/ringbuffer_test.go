package bridge

import (
	"bytes"
	"strings"
	"testing"
)

func TestRingBuffer_TrimsByByteCap(t *testing.T) {
	r := newRingBuffer(10, 1000)
	r.Write([]byte("0123456789"))
	r.Write([]byte("abcde"))
	if got := r.Bytes(); !bytes.Equal(got, []byte("56789abcde")) {
		t.Fatalf("expected trimmed tail, got %q", got)
	}
}

func TestRingBuffer_TrimsByLineCap(t *testing.T) {
	r := newRingBuffer(1 << 20, 3)
	for i := 0; i < 5; i++ {
		r.Write([]byte("line\n"))
	}
	got := string(r.Bytes())
	if n := strings.Count(got, "\n"); n != 3 {
		t.Fatalf("expected 3 lines retained, got %d in %q", n, got)
	}
}

func TestRingBuffer_BytesReturnsDefensiveCopy(t *testing.T) {
	r := newRingBuffer(100, 100)
	r.Write([]byte("hello"))
	got := r.Bytes()
	got[0] = 'X'
	if string(r.Bytes()) != "hello" {
		t.Fatalf("mutating returned slice affected internal state")
	}
}

func TestRingBuffer_EmptyInitially(t *testing.T) {
	r := newRingBuffer(10, 10)
	if len(r.Bytes()) != 0 {
		t.Fatalf("expected empty buffer initially")
	}
}
