package schema

import "sync"

// scanBuffers holds one row of driver values plus the pointers Scan fills.
type scanBuffers struct {
	vals []any
	ptrs []any
}

func (sb *scanBuffers) prepare(size int) {
	if cap(sb.vals) < size {
		sb.vals = make([]any, size)
		sb.ptrs = make([]any, size)
	}
	sb.vals = sb.vals[:size]
	sb.ptrs = sb.ptrs[:size]
	for i := range sb.vals {
		sb.vals[i] = nil
		sb.ptrs[i] = &sb.vals[i]
	}
}

// reset drops references to driver values so pooled buffers do not pin them.
func (sb *scanBuffers) reset() {
	clear(sb.vals)
	sb.vals = sb.vals[:0]
	sb.ptrs = sb.ptrs[:0]
}

var scanPool = sync.Pool{
	New: func() any {
		return &scanBuffers{
			vals: make([]any, 0, 16),
			ptrs: make([]any, 0, 16),
		}
	},
}

func getScanBuffers(size int) *scanBuffers {
	sb := scanPool.Get().(*scanBuffers)
	sb.prepare(size)
	return sb
}

func putScanBuffers(sb *scanBuffers) {
	sb.reset()
	scanPool.Put(sb)
}
