package protocol

import (
	"strings"
	"testing"
)

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	if n := scratch.Output([]byte("ok")); n != 2 {
		t.Errorf("Expected 2 bytes written, got %d", n)
	}
	if !scratch.WriteLine("") {
		t.Error("WriteLine should fit")
	}
	if got := string(scratch.Result()); got != "ok\r\n" {
		t.Errorf("Expected %q, got %q", "ok\r\n", got)
	}

	scratch.Reset()
	if len(scratch.Result()) != 0 {
		t.Errorf("After reset, expected empty result, got %d bytes", len(scratch.Result()))
	}
}

func TestScratchOutputFull(t *testing.T) {
	scratch := NewScratchOutput()
	long := strings.Repeat("x", MessageMax-2)
	if !scratch.WriteLine(long) {
		t.Fatal("line of MessageMax-2 bytes should fit")
	}
	if scratch.WriteLine("y") {
		t.Error("WriteLine should refuse when full")
	}
	if len(scratch.Result()) != MessageMax {
		t.Errorf("Expected %d bytes, got %d", MessageMax, len(scratch.Result()))
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if fifo.Available() != 0 {
		t.Errorf("Empty FIFO should have 0 available, got %d", fifo.Available())
	}

	written := fifo.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}
	if fifo.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", fifo.Available())
	}
	if fifo.Free() != 4 {
		t.Errorf("Expected 4 bytes free, got %d", fifo.Free())
	}

	out := make([]byte, 3)
	if n := fifo.Read(out); n != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("Read returned %d %v", n, out)
	}

	fifo.Reset()
	if !fifo.IsEmpty() {
		t.Error("FIFO should be empty after reset")
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3})
	fifo.Pop(2)
	fifo.Write([]byte{4, 5, 6})

	if fifo.Available() != 4 {
		t.Fatalf("Expected 4 bytes available, got %d", fifo.Available())
	}
	if idx := fifo.IndexAny(string([]byte{6})); idx != 3 {
		t.Errorf("Expected index 3 across the wrap, got %d", idx)
	}

	out := make([]byte, 4)
	fifo.Read(out)
	for i, want := range []byte{3, 4, 5, 6} {
		if out[i] != want {
			t.Errorf("out[%d]: expected %d, got %d", i, want, out[i])
		}
	}
}

func TestLineBuffer(t *testing.T) {
	lb := NewLineBuffer(512)

	lb.Write([]byte("stat\r\ncact 0 1\n\r\n"))
	lb.Write([]byte("fi"))

	line, ok := lb.NextLine()
	if !ok || line != "stat" {
		t.Fatalf("Expected stat, got %q %v", line, ok)
	}
	line, ok = lb.NextLine()
	if !ok || line != "cact 0 1" {
		t.Fatalf("Expected cact 0 1, got %q %v", line, ok)
	}
	if _, ok := lb.NextLine(); ok {
		t.Fatal("partial line should not be returned")
	}

	lb.Write([]byte("re\r"))
	line, ok = lb.NextLine()
	if !ok || line != "fire" {
		t.Fatalf("Expected fire, got %q %v", line, ok)
	}
}

func TestLineBufferOverflow(t *testing.T) {
	lb := NewLineBuffer(1024)

	lb.Write([]byte(strings.Repeat("a", LineMax+10)))
	if _, ok := lb.NextLine(); ok {
		t.Fatal("overlong line should be dropped")
	}
	lb.Write([]byte("tail\nstat\n"))

	line, ok := lb.NextLine()
	if !ok || line != "stat" {
		t.Fatalf("Expected stat after overflow, got %q %v", line, ok)
	}
	if lb.Overflows() != 1 {
		t.Errorf("Expected 1 overflow, got %d", lb.Overflows())
	}
}
