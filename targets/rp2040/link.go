//go:build rp2040

package main

import (
	"strconv"
	"strings"
	"sync"

	"pulsegen/core"
	"pulsegen/protocol"
)

// After this many failed writes in a row the host is assumed gone and the
// link drops its buffered data.
const maxWriteFailures = 10

// link is one console transport: a line assembler, a reply buffer and the
// byte sink both drain into. Replies and diagnostic lines share the sink,
// so every write holds mu.
type link struct {
	name  string
	in    *protocol.LineBuffer
	write func([]byte) (int, error)

	mu            sync.Mutex
	out           *protocol.ScratchOutput
	stale         bool // next input starts a fresh session
	writeFailures uint32

	received uint32
	sent     uint32
	dropped  uint32
}

var links []*link

func newLink(name string, capacity int, write func([]byte) (int, error)) *link {
	l := &link{
		name:  name,
		in:    protocol.NewLineBuffer(capacity),
		out:   protocol.NewScratchOutput(),
		write: write,
	}
	links = append(links, l)
	return l
}

// feed queues received bytes for line assembly.
func (l *link) feed(data []byte) {
	l.mu.Lock()
	if l.stale {
		l.stale = false
		l.writeFailures = 0
		l.in.Reset()
		l.out.Reset()
	}
	l.mu.Unlock()

	if n := l.in.Write(data); n < len(data) {
		l.mu.Lock()
		l.dropped += uint32(len(data) - n)
		l.mu.Unlock()
	}
}

// serve executes every complete line and flushes the replies.
func (l *link) serve(console *core.Console) {
	for {
		line, ok := l.in.NextLine()
		if !ok {
			break
		}
		reply := console.Execute(line)

		l.mu.Lock()
		l.received++
		if reply != "" && !l.out.WriteLine(reply) {
			l.flushLocked()
			if !l.out.WriteLine(reply) {
				l.dropped += uint32(len(reply))
			}
		}
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.flushLocked()
	l.mu.Unlock()
}

func (l *link) flushLocked() {
	result := l.out.Result()
	if len(result) == 0 {
		return
	}
	written := 0
	for written < len(result) {
		n, err := l.write(result[written:])
		if err != nil || n == 0 {
			l.writeFailures++
			if l.writeFailures > maxWriteFailures {
				l.stale = true
				l.writeFailures = 0
				l.out.Reset()
				l.in.Reset()
			}
			return
		}
		written += n
	}
	l.writeFailures = 0
	l.sent++
	l.out.Reset()
}

// writeLine sends one diagnostic line between replies.
func (l *link) writeLine(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stale {
		return
	}
	l.write([]byte(msg + "\r\n"))
}

func (l *link) stats() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name +
		" rx=" + strconv.FormatUint(uint64(l.received), 10) +
		" tx=" + strconv.FormatUint(uint64(l.sent), 10) +
		" drop=" + strconv.FormatUint(uint64(l.dropped), 10) +
		" ovf=" + strconv.FormatUint(uint64(l.in.Overflows()), 10)
}

// registerLinkVerb adds "link?", reporting traffic counters per transport.
func registerLinkVerb(console *core.Console) {
	console.Registry().Register("link?", "", 0, func(args []string) (string, error) {
		parts := make([]string, len(links))
		for i, l := range links {
			parts[i] = l.stats()
		}
		return strings.Join(parts, "; "), nil
	})
}
