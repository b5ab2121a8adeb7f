package vecfile

import (
	"fmt"
	"io"
	"os"
)

// File is a handle to an on-disk vector file plus its cached header.
type File struct {
	path   string
	f      *os.File
	header Header
}

// Open opens path, creating it if absent. If the file is new (or was
// previously created with D=0), the caller-supplied dimension is patched
// into the header via EstablishDimension once it is known. A D disagreement
// with an already-nonzero stored D is the caller's responsibility to detect;
// the file layer only ever trusts what's on disk.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	vf := &File{path: path, f: f, header: h}
	if h.N == 0 && h.D == 0 {
		if err := writeHeader(f, h); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return vf, nil
}

// Header returns the currently cached header (N, D).
func (vf *File) Header() Header { return vf.header }

// Path returns the file's path.
func (vf *File) Path() string { return vf.path }

// EstablishDimension patches D into the header the first time it becomes
// known (on the first successful insert into a brand-new file).
func (vf *File) EstablishDimension(d uint32) error {
	if vf.header.D != 0 {
		return nil
	}
	vf.header.D = d
	return writeHeader(vf.f, vf.header)
}

// Validate checks the header's declared record count against the file's
// actual size, returning an error if the file is shorter than the header
// declares — the file is considered corrupt rather than silently over-read.
// Bytes beyond the declared records are not reported.
func (vf *File) Validate() error {
	info, err := vf.f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", vf.path, err)
	}
	if vf.header.D == 0 {
		return nil
	}
	want := int64(HeaderSize) + int64(vf.header.N)*int64(RecSize(int(vf.header.D)))
	if info.Size() < want {
		return fmt.Errorf("header declares %d records but file is only %d bytes (need %d): %w",
			vf.header.N, info.Size(), want, ErrCorrupt)
	}
	return nil
}

// Size returns the current on-disk size in bytes.
func (vf *File) Size() (int64, error) {
	info, err := vf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", vf.path, err)
	}
	return info.Size(), nil
}

// AppendRecords appends a buffer of whole records (already encoded via
// EncodeRecord, back to back) past the end of the file.
func (vf *File) AppendRecords(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := vf.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek end: %w", err)
	}
	if _, err := vf.f.Write(buf); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

// SetCount patches N in the header, e.g. after an insert or a delete
// rewrite.
func (vf *File) SetCount(n uint32) error {
	vf.header.N = n
	return writeHeader(vf.f, vf.header)
}

// ReadAt reads exactly len(buf) bytes starting at the given byte offset
// from the start of the records region (i.e. past the header).
func (vf *File) ReadAt(buf []byte, recordOffset int64) (int, error) {
	return vf.f.ReadAt(buf, HeaderSize+recordOffset)
}

// OverwriteRecordAt overwrites the record at the given record index (0
// based) with rec, used by update-in-place.
func (vf *File) OverwriteRecordAt(index int64, rec []byte) error {
	recSize := RecSize(int(vf.header.D))
	off := HeaderSize + index*int64(recSize)
	if _, err := vf.f.WriteAt(rec, off); err != nil {
		return fmt.Errorf("overwrite record %d: %w", index, err)
	}
	return nil
}

// Close closes the underlying file handle.
func (vf *File) Close() error {
	if vf.f == nil {
		return nil
	}
	err := vf.f.Close()
	vf.f = nil
	return err
}

// ReplaceWith atomically replaces this file's on-disk contents with
// tmpPath's (same directory, so the rename is atomic on POSIX and NTFS),
// then reopens the handle and re-reads the header. The caller's File value
// keeps the same Go identity but now refers to the new file. tmpPath must
// not be used by the caller afterward.
func (vf *File) ReplaceWith(tmpPath string) error {
	if err := vf.f.Close(); err != nil {
		return fmt.Errorf("close before replace: %w", err)
	}
	if err := os.Rename(tmpPath, vf.path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, vf.path, err)
	}
	f, err := os.OpenFile(vf.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", vf.path, err)
	}
	h, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	vf.f = f
	vf.header = h
	return nil
}
