package audiocapture

import "sync"

// chunker reassembles small device periods into fixed-size chunks and
// emits them in production order. The device delivers ~20ms periods; the
// stream wants ~100ms frames.
type chunker struct {
	mu   sync.Mutex
	size int
	buf  []byte
	emit func(chunk []byte)
}

func newChunker(size int, emit func(chunk []byte)) *chunker {
	return &chunker{
		size: size,
		buf:  make([]byte, 0, size*2),
		emit: emit,
	}
}

// Write appends PCM bytes and emits every completed chunk.
func (c *chunker) Write(p []byte) {
	c.mu.Lock()
	c.buf = append(c.buf, p...)

	var ready [][]byte
	for len(c.buf) >= c.size {
		chunk := make([]byte, c.size)
		copy(chunk, c.buf[:c.size])
		c.buf = c.buf[c.size:]
		ready = append(ready, chunk)
	}
	c.mu.Unlock()

	for _, chunk := range ready {
		c.emit(chunk)
	}
}

// Flush emits the remaining partial chunk, if any.
func (c *chunker) Flush() {
	c.mu.Lock()
	var rest []byte
	if len(c.buf) > 0 {
		rest = make([]byte, len(c.buf))
		copy(rest, c.buf)
		c.buf = c.buf[:0]
	}
	c.mu.Unlock()

	if rest != nil {
		c.emit(rest)
	}
}

// Buffered returns the number of bytes awaiting a full chunk.
func (c *chunker) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}
