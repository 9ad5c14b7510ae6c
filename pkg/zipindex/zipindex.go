// Package zipindex locates the structural regions of a zip container.
//
// It reads the end-of-central-directory record and the central directory of
// an in-memory container. It never decompresses entry data and never repairs
// malformed input.
package zipindex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Zip record signatures and fixed sizes.
const (
	SigLocalFileHeader  uint32 = 0x04034b50
	SigCentralDirectory uint32 = 0x02014b50
	SigEndOfCentralDir  uint32 = 0x06054b50
	SigZip64Locator     uint32 = 0x07064b50

	EndOfCentralDirSize  = 22
	CentralDirHeaderSize = 46
	LocalFileHeaderSize  = 30
	zip64LocatorSize     = 20

	MaxCommentLength = math.MaxUint16
)

// Byte offsets of fields inside the end record.
const (
	eocdDiskNumberOffset    = 4
	eocdCDDiskOffset        = 6
	eocdEntriesOnDiskOffset = 8
	eocdTotalEntriesOffset  = 10
	eocdCDSizeOffset        = 12
	eocdCDOffsetOffset      = 16
	eocdCommentLenOffset    = 20
)

// CDOffsetFieldOffset is the position of the central-directory offset field
// relative to the start of the end record.
const CDOffsetFieldOffset = eocdCDOffsetOffset

// EndOfCentralDirectory is the parsed zip end record.
type EndOfCentralDirectory struct {
	// Offset is the absolute position of the record in the container.
	Offset int64

	DiskNumber    uint16
	CDDisk        uint16
	EntriesOnDisk uint16
	TotalEntries  uint16

	CentralDirectorySize   uint32
	CentralDirectoryOffset uint32

	Comment []byte
}

// CommentLength returns the length of the trailing comment.
func (e *EndOfCentralDirectory) CommentLength() int {
	return len(e.Comment)
}

// CentralDirectoryEnd returns the offset one past the last central directory byte.
func (e *EndOfCentralDirectory) CentralDirectoryEnd() int64 {
	return int64(e.CentralDirectoryOffset) + int64(e.CentralDirectorySize)
}

// Encode returns the wire form of the record including its comment.
func (e *EndOfCentralDirectory) Encode() []byte {
	buf := make([]byte, EndOfCentralDirSize+len(e.Comment))
	binary.LittleEndian.PutUint32(buf[0:], SigEndOfCentralDir)
	binary.LittleEndian.PutUint16(buf[eocdDiskNumberOffset:], e.DiskNumber)
	binary.LittleEndian.PutUint16(buf[eocdCDDiskOffset:], e.CDDisk)
	binary.LittleEndian.PutUint16(buf[eocdEntriesOnDiskOffset:], e.EntriesOnDisk)
	binary.LittleEndian.PutUint16(buf[eocdTotalEntriesOffset:], e.TotalEntries)
	binary.LittleEndian.PutUint32(buf[eocdCDSizeOffset:], e.CentralDirectorySize)
	binary.LittleEndian.PutUint32(buf[eocdCDOffsetOffset:], e.CentralDirectoryOffset)
	binary.LittleEndian.PutUint16(buf[eocdCommentLenOffset:], uint16(len(e.Comment)))
	copy(buf[EndOfCentralDirSize:], e.Comment)
	return buf
}

// Locate finds the end record of data.
//
// The scan starts at the smallest possible comment length and grows, so the
// rightmost signature whose declared comment length matches wins. A candidate
// is only accepted when its declared central directory ends exactly where the
// record begins; signature bytes that happen to appear inside comment data
// fail that check and the scan continues.
//
// ZIP64 records carry placeholder offsets and never pass the consistency
// check, so the first unsupported candidate is remembered and reported only
// when no consistent record exists.
func Locate(data []byte) (*EndOfCentralDirectory, error) {
	size := int64(len(data))
	if size < EndOfCentralDirSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for an end record", ErrFormat, size)
	}

	var unsupported error
	maxComment := min(int64(MaxCommentLength), size-EndOfCentralDirSize)
	for commentLen := int64(0); commentLen <= maxComment; commentLen++ {
		pos := size - EndOfCentralDirSize - commentLen
		if binary.LittleEndian.Uint32(data[pos:]) != SigEndOfCentralDir {
			continue
		}
		if int64(binary.LittleEndian.Uint16(data[pos+eocdCommentLenOffset:])) != commentLen {
			continue
		}

		eocd := decodeEOCD(data[pos:], pos)
		err := checkSupported(data, eocd)
		if eocd.CentralDirectoryEnd() != pos {
			if unsupported == nil {
				unsupported = err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return eocd, nil
	}

	if unsupported != nil {
		return nil, unsupported
	}
	return nil, fmt.Errorf("%w: end of central directory record not found", ErrFormat)
}

func decodeEOCD(rec []byte, pos int64) *EndOfCentralDirectory {
	commentLen := int(binary.LittleEndian.Uint16(rec[eocdCommentLenOffset:]))
	comment := make([]byte, commentLen)
	copy(comment, rec[EndOfCentralDirSize:EndOfCentralDirSize+commentLen])

	return &EndOfCentralDirectory{
		Offset:                 pos,
		DiskNumber:             binary.LittleEndian.Uint16(rec[eocdDiskNumberOffset:]),
		CDDisk:                 binary.LittleEndian.Uint16(rec[eocdCDDiskOffset:]),
		EntriesOnDisk:          binary.LittleEndian.Uint16(rec[eocdEntriesOnDiskOffset:]),
		TotalEntries:           binary.LittleEndian.Uint16(rec[eocdTotalEntriesOffset:]),
		CentralDirectorySize:   binary.LittleEndian.Uint32(rec[eocdCDSizeOffset:]),
		CentralDirectoryOffset: binary.LittleEndian.Uint32(rec[eocdCDOffsetOffset:]),
		Comment:                comment,
	}
}

func checkSupported(data []byte, e *EndOfCentralDirectory) error {
	if e.DiskNumber != 0 || e.CDDisk != 0 || e.EntriesOnDisk != e.TotalEntries {
		return fmt.Errorf("%w: multi-disk archives are not supported", ErrFormat)
	}
	if e.TotalEntries == math.MaxUint16 ||
		e.CentralDirectorySize == math.MaxUint32 ||
		e.CentralDirectoryOffset == math.MaxUint32 {
		return fmt.Errorf("%w: %w", ErrFormat, ErrZip64)
	}
	if loc := e.Offset - zip64LocatorSize; loc >= 0 &&
		binary.LittleEndian.Uint32(data[loc:]) == SigZip64Locator {
		return fmt.Errorf("%w: %w", ErrFormat, ErrZip64)
	}
	return nil
}
