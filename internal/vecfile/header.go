// Package vecfile implements the on-disk vector file: an 8-byte header
// (vector count N, dimension D, both little-endian uint32) followed by N
// fixed-size records, each (D+1)*4 bytes — a leading 4-byte metadata-ID
// slot and D little-endian float32 components.
package vecfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// HeaderSize is the fixed byte length of the vector file header.
const HeaderSize = 8

// Header is the first 8 bytes of a vector file.
type Header struct {
	N uint32
	D uint32
}

// RecSize returns the byte length of one record at dimension d: (D+1)*4.
func RecSize(d int) int { return (d + 1) * 4 }

func readHeader(f *os.File) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, nil
		}
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return Header{
		N: binary.LittleEndian.Uint32(buf[0:4]),
		D: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func writeHeader(f *os.File, h Header) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.N)
	binary.LittleEndian.PutUint32(buf[4:8], h.D)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}
