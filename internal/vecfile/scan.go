package vecfile

import (
	"fmt"
	"io"
)

// Scan streams the first header.N records in chunks of up to bufRecords
// records, calling fn once per chunk with the decoded record slices (each
// recSize bytes, sharing the chunk's backing buffer — do not retain beyond
// the call). Returns wrapped ErrCorrupt if the file ends before all N
// declared records have been read.
func (vf *File) Scan(bufRecords int, pool *BufferPool, fn func(records [][]byte) error) error {
	recSize := RecSize(int(vf.header.D))
	if recSize <= 4 || vf.header.N == 0 {
		return nil
	}

	remaining := int64(vf.header.N)
	var offset int64

	for remaining > 0 {
		n := bufRecords
		if int64(n) > remaining {
			n = int(remaining)
		}

		buf := pool.Get(n)
		_, err := vf.ReadAt(buf, offset*int64(recSize))
		if err != nil {
			pool.Put(buf)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fmt.Errorf("scan: expected %d more records at offset %d: %w", remaining, offset, ErrCorrupt)
			}
			return fmt.Errorf("scan: %w", err)
		}

		records := make([][]byte, n)
		for i := 0; i < n; i++ {
			records[i] = buf[i*recSize : (i+1)*recSize]
		}

		if err := fn(records); err != nil {
			pool.Put(buf)
			return err
		}

		pool.Put(buf)
		offset += int64(n)
		remaining -= int64(n)
	}

	return nil
}

// ReadRange reads the records in [skip, skip+limit) — used by paginate,
// which does not stream but seeks directly.
func (vf *File) ReadRange(skip, limit int) ([][]byte, error) {
	recSize := RecSize(int(vf.header.D))
	if recSize <= 4 || limit <= 0 {
		return nil, nil
	}
	buf := make([]byte, limit*recSize)
	if _, err := vf.ReadAt(buf, int64(skip)*int64(recSize)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read range: %w", ErrCorrupt)
		}
		return nil, fmt.Errorf("read range: %w", err)
	}
	out := make([][]byte, limit)
	for i := 0; i < limit; i++ {
		out[i] = buf[i*recSize : (i+1)*recSize]
	}
	return out, nil
}
