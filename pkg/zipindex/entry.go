package zipindex

import (
	"encoding/binary"
	"fmt"
)

// FlagDataDescriptor marks entries whose sizes follow the data.
const FlagDataDescriptor uint16 = 1 << 3

// FlagUTF8 marks entries whose name is UTF-8 encoded.
const FlagUTF8 uint16 = 1 << 11

// Compression methods the engine understands.
const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

// Entry is one central directory record.
type Entry struct {
	Name string

	Flags            uint16
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32

	// LocalHeaderOffset is the absolute offset of the entry's local header.
	LocalHeaderOffset uint32

	// Raw holds the complete central directory record as read.
	Raw []byte
}

// ListEntries reads every central directory record declared by eocd.
func ListEntries(data []byte, eocd *EndOfCentralDirectory) ([]Entry, error) {
	start := int64(eocd.CentralDirectoryOffset)
	end := eocd.CentralDirectoryEnd()
	if end > int64(len(data)) || start > end {
		return nil, fmt.Errorf("%w: central directory [%d,%d) out of bounds", ErrFormat, start, end)
	}

	cd := data[start:end]
	entries := make([]Entry, 0, eocd.TotalEntries)
	pos := 0
	for i := 0; i < int(eocd.TotalEntries); i++ {
		e, n, err := decodeEntry(cd[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: central directory record %d: %v", ErrFormat, i, err)
		}
		entries = append(entries, e)
		pos += n
	}
	if pos != len(cd) {
		return nil, fmt.Errorf("%w: central directory has %d trailing bytes", ErrFormat, len(cd)-pos)
	}
	return entries, nil
}

func decodeEntry(b []byte) (Entry, int, error) {
	if len(b) < CentralDirHeaderSize {
		return Entry{}, 0, fmt.Errorf("truncated header (%d bytes)", len(b))
	}
	if sig := binary.LittleEndian.Uint32(b); sig != SigCentralDirectory {
		return Entry{}, 0, fmt.Errorf("bad signature %#08x", sig)
	}

	nameLen := int(binary.LittleEndian.Uint16(b[28:]))
	extraLen := int(binary.LittleEndian.Uint16(b[30:]))
	commentLen := int(binary.LittleEndian.Uint16(b[32:]))
	total := CentralDirHeaderSize + nameLen + extraLen + commentLen
	if total > len(b) {
		return Entry{}, 0, fmt.Errorf("record needs %d bytes, %d available", total, len(b))
	}

	raw := make([]byte, total)
	copy(raw, b[:total])

	return Entry{
		Name:              string(b[CentralDirHeaderSize : CentralDirHeaderSize+nameLen]),
		Flags:             binary.LittleEndian.Uint16(b[8:]),
		Method:            binary.LittleEndian.Uint16(b[10:]),
		CRC32:             binary.LittleEndian.Uint32(b[16:]),
		CompressedSize:    binary.LittleEndian.Uint32(b[20:]),
		UncompressedSize:  binary.LittleEndian.Uint32(b[24:]),
		LocalHeaderOffset: binary.LittleEndian.Uint32(b[42:]),
		Raw:               raw,
	}, total, nil
}

// LocalData returns the compressed payload of e and the offset one past it.
//
// Entries with a trailing data descriptor report the sizes from the central
// directory, so the returned end excludes the descriptor.
func LocalData(data []byte, e Entry) ([]byte, int64, error) {
	off := int64(e.LocalHeaderOffset)
	if off+LocalFileHeaderSize > int64(len(data)) {
		return nil, 0, fmt.Errorf("%w: local header of %q out of bounds", ErrFormat, e.Name)
	}
	hdr := data[off:]
	if sig := binary.LittleEndian.Uint32(hdr); sig != SigLocalFileHeader {
		return nil, 0, fmt.Errorf("%w: local header of %q has signature %#08x", ErrFormat, e.Name, sig)
	}

	nameLen := int64(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(hdr[28:]))
	start := off + LocalFileHeaderSize + nameLen + extraLen
	end := start + int64(e.CompressedSize)
	if end > int64(len(data)) {
		return nil, 0, fmt.Errorf("%w: data of %q out of bounds", ErrFormat, e.Name)
	}
	return data[start:end], end, nil
}
