package server

import "sync"

// Read buffers are pooled per size class. Sizes above the largest class
// are allocated and left to the GC.
var bufferClasses = []int{4 << 10, 32 << 10, 128 << 10}

var bufferPools = func() []*sync.Pool {
	pools := make([]*sync.Pool, len(bufferClasses))
	for i, size := range bufferClasses {
		size := size
		pools[i] = &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		}
	}
	return pools
}()

// GetBuffer returns a buffer of exactly size bytes.
func GetBuffer(size int) []byte {
	for i, class := range bufferClasses {
		if size <= class {
			buf := bufferPools[i].Get().(*[]byte)
			return (*buf)[:size]
		}
	}
	return make([]byte, size)
}

// PutBuffer returns a buffer obtained from GetBuffer to its pool.
func PutBuffer(buf []byte) {
	for i, class := range bufferClasses {
		if cap(buf) == class {
			full := buf[:class]
			bufferPools[i].Put(&full)
			return
		}
	}
}
