package mqttsn

import (
	"sync"
)

// encodeBufferSize covers a PUBLISH that fits in a single 802.15.4 frame.
const encodeBufferSize = 128

// maxRetainedEncodeBuffer caps the capacity kept by the encode pool, so one
// large PUBLISH does not pin a 64 KiB buffer.
const maxRetainedEncodeBuffer = 1024

// typedPool is a sync.Pool for one item type. reset clears an item before
// reuse and reports whether it may return to the pool.
type typedPool[T any] struct {
	pool  sync.Pool
	reset func(T) bool
}

func newTypedPool[T any](alloc func() T, reset func(T) bool) *typedPool[T] {
	return &typedPool[T]{
		pool:  sync.Pool{New: func() any { return alloc() }},
		reset: reset,
	}
}

func (p *typedPool[T]) get() T {
	return p.pool.Get().(T)
}

func (p *typedPool[T]) put(v T) {
	if p.reset(v) {
		p.pool.Put(v)
	}
}

var (
	// datagramReaders decode inbound datagrams.
	datagramReaders = newTypedPool(
		func() *bytesReader { return &bytesReader{} },
		func(r *bytesReader) bool {
			if r == nil {
				return false
			}
			r.data = nil
			r.pos = 0
			return true
		},
	)

	// encodeBuffers hold outbound messages until they are copied out.
	encodeBuffers = newTypedPool(
		func() *bytesBuffer { return &bytesBuffer{data: make([]byte, 0, encodeBufferSize)} },
		func(b *bytesBuffer) bool {
			if b == nil || cap(b.data) > maxRetainedEncodeBuffer {
				return false
			}
			b.data = b.data[:0]
			return true
		},
	)
)

// readerFor returns a pooled reader positioned at the start of data.
func readerFor(data []byte) *bytesReader {
	r := datagramReaders.get()
	r.data = data
	r.pos = 0
	return r
}
