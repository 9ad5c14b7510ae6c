package legacy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Fixed header values for injected entries. The timestamp is the DOS epoch
// (1980-01-01 00:00) so that output depends only on the metadata.
const (
	dosDate       uint16 = 1<<5 | 1
	dosTime       uint16 = 0
	versionNeeded uint16 = 10
	versionMadeBy uint16 = 20
)

// Inject returns a copy of data carrying m in a channel entry.
//
// An entry for the same channel is replaced at its central directory
// position. When that entry's data is the last thing before the central
// directory it is overwritten; otherwise the new data is appended and the old
// local record is left unreferenced. Every other entry keeps its bytes, order
// and offsets.
func Inject(data []byte, m *payload.Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	name, err := EntryName(m.ChannelID())
	if err != nil {
		return nil, err
	}

	eocd, err := zipindex.Locate(data)
	if err != nil {
		return nil, err
	}
	if err := ensureNoSigningBlock(data, eocd); err != nil {
		return nil, err
	}
	entries, err := zipindex.ListEntries(data, eocd)
	if err != nil {
		return nil, err
	}

	insertAt := int64(eocd.CentralDirectoryOffset)
	replace := -1
	for i, e := range entries {
		if e.Name == name {
			replace = i
			break
		}
	}
	if replace >= 0 {
		old := entries[replace]
		_, end, err := zipindex.LocalData(data, old)
		if err == nil && old.Flags&zipindex.FlagDataDescriptor == 0 && end == insertAt {
			insertAt = int64(old.LocalHeaderOffset)
		}
	}

	local, central := buildEntry(name, payload.Encode(m), uint32(insertAt))

	var cd bytes.Buffer
	for i, e := range entries {
		if i == replace {
			cd.Write(central)
			continue
		}
		cd.Write(e.Raw)
	}
	count := len(entries)
	if replace < 0 {
		cd.Write(central)
		count++
	}

	cdOffset := insertAt + int64(len(local))
	if count >= math.MaxUint16 || cdOffset+int64(cd.Len()) >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: %w", zipindex.ErrFormat, zipindex.ErrZip64)
	}

	end := *eocd
	end.TotalEntries = uint16(count)
	end.EntriesOnDisk = uint16(count)
	end.CentralDirectorySize = uint32(cd.Len())
	end.CentralDirectoryOffset = uint32(cdOffset)
	tail := end.Encode()

	out := make([]byte, 0, cdOffset+int64(cd.Len())+int64(len(tail)))
	out = append(out, data[:insertAt]...)
	out = append(out, local...)
	out = append(out, cd.Bytes()...)
	out = append(out, tail...)
	return out, nil
}

// buildEntry encodes the local record (header and data) and the central
// directory record of a stored entry.
func buildEntry(name string, content []byte, localOffset uint32) (local, central []byte) {
	var flags uint16
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			flags |= zipindex.FlagUTF8
			break
		}
	}
	crc := crc32.ChecksumIEEE(content)
	size := uint32(len(content))
	nameLen := uint16(len(name))

	local = make([]byte, zipindex.LocalFileHeaderSize+len(name)+len(content))
	binary.LittleEndian.PutUint32(local[0:], zipindex.SigLocalFileHeader)
	binary.LittleEndian.PutUint16(local[4:], versionNeeded)
	binary.LittleEndian.PutUint16(local[6:], flags)
	binary.LittleEndian.PutUint16(local[8:], zipindex.MethodStore)
	binary.LittleEndian.PutUint16(local[10:], dosTime)
	binary.LittleEndian.PutUint16(local[12:], dosDate)
	binary.LittleEndian.PutUint32(local[14:], crc)
	binary.LittleEndian.PutUint32(local[18:], size)
	binary.LittleEndian.PutUint32(local[22:], size)
	binary.LittleEndian.PutUint16(local[26:], nameLen)
	binary.LittleEndian.PutUint16(local[28:], 0)
	n := zipindex.LocalFileHeaderSize
	n += copy(local[n:], name)
	copy(local[n:], content)

	central = make([]byte, zipindex.CentralDirHeaderSize+len(name))
	binary.LittleEndian.PutUint32(central[0:], zipindex.SigCentralDirectory)
	binary.LittleEndian.PutUint16(central[4:], versionMadeBy)
	binary.LittleEndian.PutUint16(central[6:], versionNeeded)
	binary.LittleEndian.PutUint16(central[8:], flags)
	binary.LittleEndian.PutUint16(central[10:], zipindex.MethodStore)
	binary.LittleEndian.PutUint16(central[12:], dosTime)
	binary.LittleEndian.PutUint16(central[14:], dosDate)
	binary.LittleEndian.PutUint32(central[16:], crc)
	binary.LittleEndian.PutUint32(central[20:], size)
	binary.LittleEndian.PutUint32(central[24:], size)
	binary.LittleEndian.PutUint16(central[28:], nameLen)
	// extra, comment, disk, internal and external attributes stay zero.
	binary.LittleEndian.PutUint32(central[42:], localOffset)
	copy(central[zipindex.CentralDirHeaderSize:], name)
	return local, central
}
