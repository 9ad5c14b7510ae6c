package channel

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Digest is the BLAKE3-256 hash of a package.
type Digest [32]byte

// Sum hashes data.
func Sum(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// RecordInfo summarises one signing block record.
type RecordInfo struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// BlockInfo summarises a signing block.
type BlockInfo struct {
	Offset  int64        `json:"offset"`
	Size    int64        `json:"size"`
	Records []RecordInfo `json:"records"`
}

// Layout describes the structural regions of a package.
type Layout struct {
	Size                   int64      `json:"size"`
	Digest                 Digest     `json:"digest"`
	EndRecordOffset        int64      `json:"end_record_offset"`
	CentralDirectoryOffset uint32     `json:"central_directory_offset"`
	CentralDirectorySize   uint32     `json:"central_directory_size"`
	Entries                int        `json:"entries"`
	CommentLength          int        `json:"comment_length"`
	SigningBlock           *BlockInfo `json:"signing_block,omitempty"`

	Channel         *Result           `json:"-"`
	Source          Source            `json:"source"`
	ChannelMetadata map[string]string `json:"channel,omitempty"`
	// ChannelError is set when the package has no readable channel.
	ChannelError string `json:"channel_error,omitempty"`
}

// Analyze describes data. Only a malformed container is an error; channel
// problems are reported in the layout.
func Analyze(data []byte) (*Layout, error) {
	eocd, err := zipindex.Locate(data)
	if err != nil {
		return nil, err
	}
	entries, err := zipindex.ListEntries(data, eocd)
	if err != nil {
		return nil, err
	}

	l := &Layout{
		Size:                   int64(len(data)),
		Digest:                 Sum(data),
		EndRecordOffset:        eocd.Offset,
		CentralDirectoryOffset: eocd.CentralDirectoryOffset,
		CentralDirectorySize:   eocd.CentralDirectorySize,
		Entries:                len(entries),
		CommentLength:          eocd.CommentLength(),
	}

	span, err := sigblock.Locate(data, eocd)
	if err != nil {
		return nil, err
	}
	if span != nil {
		l.SigningBlock = &BlockInfo{Offset: span.Offset, Size: span.Size}
		if records, err := sigblock.Decode(span.Bytes(data)); err == nil {
			for _, r := range records {
				l.SigningBlock.Records = append(l.SigningBlock.Records, RecordInfo{ID: r.ID.String(), Size: len(r.Value)})
			}
		}
	}

	if r, err := inspect(data, eocd); err != nil {
		l.ChannelError = err.Error()
	} else {
		l.Channel = &r
		l.Source = r.Source
		l.ChannelMetadata = r.Metadata.Map()
	}
	return l, nil
}
