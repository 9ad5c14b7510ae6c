package sigblock

import (
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Span is the position of a signing block within a container.
type Span struct {
	// Offset is the absolute position of the leading size field.
	Offset int64
	// Size is the total block length including both size fields and the magic.
	Size int64
	Magic [magicLen]byte
}

// End returns the offset one past the block, which is the central directory offset.
func (s *Span) End() int64 { return s.Offset + s.Size }

// Bytes returns the block's bytes within data.
func (s *Span) Bytes(data []byte) []byte {
	return data[s.Offset:s.End()]
}

// Locate finds the signing block that ends at the central directory.
//
// A missing magic is not an error: Locate returns nil, nil and the container
// is treated as carrying no signing block. Once the magic matches, any
// inconsistency fails with ErrBlockCorrupt.
func Locate(data []byte, eocd *zipindex.EndOfCentralDirectory) (*Span, error) {
	cdOff := int64(eocd.CentralDirectoryOffset)
	if cdOff > int64(len(data)) {
		return nil, fmt.Errorf("%w: central directory offset %d past end of data", zipindex.ErrFormat, cdOff)
	}
	if cdOff < minBlockSize {
		return nil, nil
	}

	footer := data[cdOff-footerLen : cdOff]
	if string(footer[sizeFieldLen:]) != Magic {
		return nil, nil
	}

	footerSize := binary.LittleEndian.Uint64(footer)
	if footerSize < footerLen || footerSize > uint64(cdOff-sizeFieldLen) {
		// The block would have to start before the container does.
		return nil, fmt.Errorf("%w: footer size %d out of range", ErrBlockCorrupt, footerSize)
	}

	total := int64(footerSize) + sizeFieldLen
	start := cdOff - total
	if headSize := binary.LittleEndian.Uint64(data[start:]); headSize != footerSize {
		return nil, fmt.Errorf("%w: head size %d does not match footer size %d", ErrBlockCorrupt, headSize, footerSize)
	}

	span := &Span{Offset: start, Size: total}
	copy(span.Magic[:], footer[sizeFieldLen:])
	return span, nil
}
