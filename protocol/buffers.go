package protocol

import "sync"

// ScratchOutput collects reply lines until the transport drains it.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{pos: 0}
}

// Output appends raw bytes, truncating at capacity. It returns the number
// of bytes stored.
func (s *ScratchOutput) Output(data []byte) int {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	return n
}

// WriteLine appends line followed by CRLF. A line that does not fit whole
// is dropped and false is returned.
func (s *ScratchOutput) WriteLine(line string) bool {
	if s.pos+len(line)+2 > len(s.buf) {
		return false
	}
	s.pos += copy(s.buf[s.pos:], line)
	s.buf[s.pos] = '\r'
	s.buf[s.pos+1] = '\n'
	s.pos += 2
	return true
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IndexAny returns the offset from the read position of the first byte
// that is one of chars, or -1.
func (f *FifoBuffer) IndexAny(chars string) int {
	n := f.Available()
	for i := 0; i < n; i++ {
		b := f.buf[(f.read+i)%f.size]
		for j := 0; j < len(chars); j++ {
			if b == chars[j] {
				return i
			}
		}
	}
	return -1
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}

// LineBuffer assembles CR/LF terminated lines from transport bytes. The
// transport goroutine writes, the console loop reads.
type LineBuffer struct {
	mu      sync.Mutex
	fifo    *FifoBuffer
	scratch [LineMax]byte

	// discarding is set after an overlong line until its terminator.
	discarding bool
	overflows  uint32
}

// NewLineBuffer creates a line buffer holding up to capacity bytes.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity < LineMax+2 {
		capacity = LineMax + 2
	}
	return &LineBuffer{fifo: NewFifoBuffer(capacity)}
}

// Write queues transport bytes. It returns how many were accepted.
func (l *LineBuffer) Write(data []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fifo.Write(data)
}

// NextLine returns the next complete, non-empty line without its
// terminator. Lines longer than LineMax are dropped whole.
func (l *LineBuffer) NextLine() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		idx := l.fifo.IndexAny("\r\n")
		if idx < 0 {
			if l.fifo.Available() > LineMax {
				// No terminator in sight: drop what we have and skip
				// the rest of this line when it arrives.
				l.fifo.Pop(l.fifo.Available())
				l.discarding = true
				l.overflows++
			}
			return "", false
		}

		if l.discarding || idx > LineMax {
			if !l.discarding {
				l.overflows++
			}
			l.fifo.Pop(idx + 1)
			l.discarding = false
			continue
		}

		n := l.fifo.Read(l.scratch[:idx])
		l.fifo.Pop(1) // terminator
		if n == 0 {
			continue // empty line or the LF of a CRLF
		}
		return string(l.scratch[:n]), true
	}
}

// Overflows returns how many lines were dropped for length.
func (l *LineBuffer) Overflows() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overflows
}

// Reset drops all buffered input.
func (l *LineBuffer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fifo.Reset()
	l.discarding = false
}
