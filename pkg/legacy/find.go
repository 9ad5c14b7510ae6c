package legacy

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// maxEntrySize bounds the inflated size of a channel entry.
const maxEntrySize = 1 << 20

// Find returns the first channel entry in central directory order and its
// uncompressed content. It fails with ErrNotFound when no entry matches.
func Find(data []byte, entries []zipindex.Entry) (zipindex.Entry, []byte, error) {
	for _, e := range entries {
		if _, ok := ChannelFromName(e.Name); !ok {
			continue
		}
		content, err := entryContent(data, e)
		if err != nil {
			return e, nil, err
		}
		return e, content, nil
	}
	return zipindex.Entry{}, nil, ErrNotFound
}

// Read returns the metadata held by the first channel entry of data along
// with the entry name. An empty entry yields only the channel ID from its name.
func Read(data []byte, eocd *zipindex.EndOfCentralDirectory) (*payload.Metadata, string, error) {
	entries, err := zipindex.ListEntries(data, eocd)
	if err != nil {
		return nil, "", err
	}
	e, content, err := Find(data, entries)
	if err != nil {
		return nil, e.Name, err
	}

	if len(bytes.TrimSpace(content)) == 0 {
		id, _ := ChannelFromName(e.Name)
		m, err := payload.New(id)
		if err != nil {
			return nil, e.Name, fmt.Errorf("%w: %v", payload.ErrPayloadFormat, err)
		}
		return m, e.Name, nil
	}
	m, err := payload.DecodeAny(content)
	if err != nil {
		return nil, e.Name, err
	}
	return m, e.Name, nil
}

func entryContent(data []byte, e zipindex.Entry) ([]byte, error) {
	raw, _, err := zipindex.LocalData(data, e)
	if err != nil {
		return nil, err
	}

	switch e.Method {
	case zipindex.MethodStore:
		return bytes.Clone(raw), nil
	case zipindex.MethodDeflate:
		r := flate.NewReader(bytes.NewReader(raw))
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: inflate %q: %v", zipindex.ErrFormat, e.Name, err)
		}
		if len(out) > maxEntrySize {
			return nil, fmt.Errorf("%w: %q inflates past %d bytes", zipindex.ErrFormat, e.Name, maxEntrySize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q uses compression method %d", zipindex.ErrFormat, e.Name, e.Method)
	}
}
