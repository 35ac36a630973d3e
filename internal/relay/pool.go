package relay

import "sync"

// BufferPool hands out fixed-size buffers. Buffers travel as *[]byte so
// putting one back does not allocate.
type BufferPool struct {
	size int
	p    sync.Pool
}

func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.p.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

func (bp *BufferPool) Get() *[]byte {
	return bp.p.Get().(*[]byte)
}

// Put recycles b. Buffers that were resliced to another length are dropped.
func (bp *BufferPool) Put(b *[]byte) {
	if b == nil || len(*b) != bp.size {
		return
	}
	bp.p.Put(b)
}
