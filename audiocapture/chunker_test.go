package audiocapture

import (
	"bytes"
	"testing"
)

func TestChunkerFraming(t *testing.T) {
	var chunks [][]byte
	c := newChunker(4, func(chunk []byte) {
		chunks = append(chunks, chunk)
	})

	// Periods smaller, equal to, and larger than the chunk size.
	c.Write([]byte{1, 2})
	if len(chunks) != 0 {
		t.Fatalf("emitted %d chunks before a full frame", len(chunks))
	}

	c.Write([]byte{3, 4, 5})
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte{1, 2, 3, 4}) {
		t.Errorf("chunk[0] = %v, want [1 2 3 4]", chunks[0])
	}

	c.Write([]byte{6, 7, 8, 9, 10, 11, 12})
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if !bytes.Equal(chunks[1], []byte{5, 6, 7, 8}) {
		t.Errorf("chunk[1] = %v, want [5 6 7 8]", chunks[1])
	}
	if !bytes.Equal(chunks[2], []byte{9, 10, 11, 12}) {
		t.Errorf("chunk[2] = %v, want [9 10 11 12]", chunks[2])
	}
	if c.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", c.Buffered())
	}
}

func TestChunkerFlush(t *testing.T) {
	var chunks [][]byte
	c := newChunker(4, func(chunk []byte) {
		chunks = append(chunks, chunk)
	})

	c.Write([]byte{1, 2, 3})
	if c.Buffered() != 3 {
		t.Errorf("Buffered() = %d, want 3", c.Buffered())
	}

	c.Flush()
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 after flush", len(chunks))
	}
	if !bytes.Equal(chunks[0], []byte{1, 2, 3}) {
		t.Errorf("flushed chunk = %v, want [1 2 3]", chunks[0])
	}

	// Flushing an empty buffer emits nothing.
	c.Flush()
	if len(chunks) != 1 {
		t.Errorf("chunks = %d after empty flush, want 1", len(chunks))
	}
}

func TestChunkerEmitsCopies(t *testing.T) {
	var chunks [][]byte
	c := newChunker(2, func(chunk []byte) {
		chunks = append(chunks, chunk)
	})

	period := []byte{1, 2}
	c.Write(period)
	period[0] = 99

	if !bytes.Equal(chunks[0], []byte{1, 2}) {
		t.Errorf("chunk aliased the device buffer: %v", chunks[0])
	}
}
