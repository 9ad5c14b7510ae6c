package zipindex

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is a container loaded read-only for indexing.
type File struct {
	Data []byte
	EOCD *EndOfCentralDirectory
	Path string

	mmapped bool
}

// Open maps a container read-only and locates its end record.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The mapping is PROT_READ, so the base container cannot be modified through
// Data. The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFormat, path)
	}

	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s is too large to index", ErrFormat, path)
	}
	size := int(size64)
	if size < EndOfCentralDirSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFormat, path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		zf, parseErr := newFile(path, data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return zf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return newFile(path, data, false)
}

func newFile(path string, data []byte, mmapped bool) (*File, error) {
	eocd, err := Locate(data)
	if err != nil {
		return nil, err
	}
	return &File{Data: data, EOCD: eocd, Path: path, mmapped: mmapped}, nil
}

// Entries lists the central directory of f.
func (f *File) Entries() ([]Entry, error) {
	return ListEntries(f.Data, f.EOCD)
}

// Close releases the mapping, if any.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.EOCD = nil
	f.mmapped = false
	return err
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
