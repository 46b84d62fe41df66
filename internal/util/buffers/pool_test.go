package buffers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/firstbutton/docucal/internal/constants"
)

// TestCopyBufferPool verifies that buffers can be retrieved and returned
func TestCopyBufferPool(t *testing.T) {
	buf := GetCopyBuffer()
	if buf == nil {
		t.Fatal("GetCopyBuffer returned nil")
	}
	if len(*buf) != constants.CopyBufferSize {
		t.Errorf("Buffer size = %d, want %d", len(*buf), constants.CopyBufferSize)
	}
	PutCopyBuffer(buf)

	buf2 := GetCopyBuffer()
	if buf2 == nil {
		t.Fatal("GetCopyBuffer returned nil on second call")
	}
	PutCopyBuffer(buf2)
}

// TestPutCopyBufferWithWrongSize verifies wrong-sized buffers are not pooled
func TestPutCopyBufferWithWrongSize(t *testing.T) {
	wrong := make([]byte, 1024)
	PutCopyBuffer(&wrong)
	PutCopyBuffer(nil)

	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)
	if len(*buf) != constants.CopyBufferSize {
		t.Errorf("pool returned a %d byte buffer", len(*buf))
	}
}

// TestPutCopyBufferClears verifies returned buffers are zeroed
func TestPutCopyBufferClears(t *testing.T) {
	buf := GetCopyBuffer()
	copy(*buf, "secret document")
	PutCopyBuffer(buf)

	for i, b := range (*buf)[:16] {
		if b != 0 {
			t.Fatalf("byte %d = %d after Put, want 0", i, b)
		}
	}
}

func TestCopy(t *testing.T) {
	src := strings.Repeat("x", constants.CopyBufferSize*2+17)
	var dst bytes.Buffer

	before := GetStats().Gets
	n, err := Copy(&dst, strings.NewReader(src))
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != int64(len(src)) || dst.String() != src {
		t.Errorf("Copy() copied %d bytes, want %d", n, len(src))
	}
	if GetStats().Gets != before+1 {
		t.Error("Copy() should take exactly one buffer from the pool")
	}
}

// TestConcurrentAccess verifies the pool is safe under concurrent use
func TestConcurrentAccess(t *testing.T) {
	const goroutines = 20
	done := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			var dst bytes.Buffer
			if _, err := Copy(&dst, strings.NewReader("payload")); err != nil {
				t.Errorf("Copy() error = %v", err)
			}
			done <- true
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
}
