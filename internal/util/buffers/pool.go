// Package buffers provides reusable copy buffers for streaming document bodies.
package buffers

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/firstbutton/docucal/internal/constants"
)

// Pool monitoring counters
var (
	allocations int64
	gets        int64
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&allocations, 1)
		buf := make([]byte, constants.CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a buffer from the pool.
// Return it with PutCopyBuffer when done.
func GetCopyBuffer() *[]byte {
	atomic.AddInt64(&gets, 1)
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer to the pool. Buffers of the wrong size are
// dropped. The contents are cleared so document bytes do not linger.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyBufferSize {
		clear(*buf)
		copyPool.Put(buf)
	}
}

// Copy copies src to dst using a pooled buffer.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// Stats is a snapshot of pool usage.
type Stats struct {
	BufferSize  int
	Allocations int64
	Gets        int64
}

// GetStats returns current pool statistics.
func GetStats() Stats {
	return Stats{
		BufferSize:  constants.CopyBufferSize,
		Allocations: atomic.LoadInt64(&allocations),
		Gets:        atomic.LoadInt64(&gets),
	}
}
