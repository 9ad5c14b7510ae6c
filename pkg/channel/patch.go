package channel

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/chanpack/pkg/legacy"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Patch returns a copy of data carrying m and the place it was written.
//
// With a signing block, the channel record is upserted and the block rebuilt.
// Bytes before the block, the central directory and the end record are copied
// unchanged apart from the end record's central directory offset, which moves
// with the block's length. Without a signing block a legacy entry is written.
// data is never modified.
func Patch(data []byte, m *payload.Metadata) ([]byte, Source, error) {
	if err := m.Validate(); err != nil {
		return nil, SourceNone, err
	}
	eocd, err := zipindex.Locate(data)
	if err != nil {
		return nil, SourceNone, err
	}
	span, err := sigblock.Locate(data, eocd)
	if err != nil {
		return nil, SourceNone, err
	}
	if span == nil {
		out, err := legacy.Inject(data, m)
		if err != nil {
			return nil, SourceNone, err
		}
		return out, SourceLegacyEntry, nil
	}

	out, err := patchBlock(data, eocd, span, payload.Encode(m))
	if err != nil {
		return nil, SourceNone, err
	}
	return out, SourceSigningBlock, nil
}

func patchBlock(data []byte, eocd *zipindex.EndOfCentralDirectory, span *sigblock.Span, value []byte) ([]byte, error) {
	records, err := sigblock.Decode(span.Bytes(data))
	if err != nil {
		return nil, err
	}
	records, err = sigblock.Upsert(records, sigblock.IDChannel, value)
	if err != nil {
		return nil, err
	}
	block := sigblock.Encode(records)

	cdOffset := span.Offset + int64(len(block))
	if cdOffset >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: %w", zipindex.ErrFormat, zipindex.ErrZip64)
	}

	tail := data[span.End():]
	out := make([]byte, span.Offset+int64(len(block))+int64(len(tail)))
	n := copy(out, data[:span.Offset])
	n += copy(out[n:], block)
	copy(out[n:], tail)

	eocdAt := eocd.Offset - span.End() + cdOffset
	binary.LittleEndian.PutUint32(out[eocdAt+zipindex.CDOffsetFieldOffset:], uint32(cdOffset))
	return out, nil
}
