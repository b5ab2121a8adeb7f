package vecfile

import "sync"

// BufferRecordCount picks how many records a scan buffer should hold:
// as close to targetBytes worth of records as possible, clamped to
// [minRecords, maxRecords].
func BufferRecordCount(d, targetBytes, minRecords, maxRecords int) int {
	recSize := RecSize(d)
	if recSize <= 0 {
		return minRecords
	}
	n := targetBytes / recSize
	if n < minRecords {
		n = minRecords
	}
	if n > maxRecords {
		n = maxRecords
	}
	return n
}

// BufferPool hands out reusable byte buffers sized to hold a fixed number
// of fixed-size records, avoiding a fresh allocation on every scan or
// write-stage call: one pooled buffer per operation, returned when the
// caller is done. Safe for concurrent use, since multiple reads (searches)
// may run in parallel on the same connection.
type BufferPool struct {
	recSize int
	pool    sync.Pool
}

// NewBufferPool creates a pool for buffers sized in multiples of recSize.
func NewBufferPool(recSize int) *BufferPool {
	return &BufferPool{recSize: recSize}
}

// Get returns a buffer capable of holding exactly nRecords records.
func (p *BufferPool) Get(nRecords int) []byte {
	need := nRecords * p.recSize
	if v := p.pool.Get(); v != nil {
		buf := v.([]byte)
		if cap(buf) >= need {
			return buf[:need]
		}
	}
	return make([]byte, need)
}

// Put releases buf back to the pool for reuse.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.pool.Put(buf) //nolint:staticcheck // deliberately pooling a slice header
}
