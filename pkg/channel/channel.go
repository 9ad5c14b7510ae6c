// Package channel reads and writes channel metadata in signed packages.
//
// A package carries its channel either as a private record inside the APK
// signing block or, when it has no signing block, as a legacy zip entry.
// Read tries the record first and then the entry.
package channel

import (
	"errors"
	"fmt"

	"github.com/samcharles93/chanpack/pkg/legacy"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// ErrNoChannel reports a well-formed package that carries no channel.
var ErrNoChannel = errors.New("channel: package carries no channel metadata")

// Source says where metadata was found or written.
type Source int

const (
	SourceNone Source = iota
	SourceSigningBlock
	SourceLegacyEntry
)

func (s Source) String() string {
	switch s {
	case SourceSigningBlock:
		return "signing-block"
	case SourceLegacyEntry:
		return "legacy-entry"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the metadata read from a package.
type Result struct {
	Metadata *payload.Metadata
	Source   Source
	// Entry is the legacy entry name when Source is SourceLegacyEntry.
	Entry string
}

// Read returns the channel metadata of data. Malformed packages, corrupt
// records and unreadable payloads all report false; use Inspect for the
// reason.
func Read(data []byte) (Result, bool) {
	r, err := Inspect(data)
	if err != nil {
		return Result{}, false
	}
	return r, true
}

// Inspect is Read with the failure reason. A package without metadata fails
// with ErrNoChannel.
func Inspect(data []byte) (Result, error) {
	eocd, err := zipindex.Locate(data)
	if err != nil {
		return Result{}, err
	}
	return inspect(data, eocd)
}

func inspect(data []byte, eocd *zipindex.EndOfCentralDirectory) (Result, error) {
	span, err := sigblock.Locate(data, eocd)
	if err != nil {
		return Result{}, err
	}
	if span != nil {
		records, err := sigblock.Decode(span.Bytes(data))
		if err != nil {
			return Result{}, err
		}
		if value, ok := sigblock.Find(records, sigblock.IDChannel); ok {
			m, err := payload.DecodeAny(value)
			if err != nil {
				return Result{}, fmt.Errorf("signing block record: %w", err)
			}
			return Result{Metadata: m, Source: SourceSigningBlock}, nil
		}
	}

	m, name, err := legacy.Read(data, eocd)
	switch {
	case errors.Is(err, legacy.ErrNotFound):
		return Result{}, ErrNoChannel
	case err != nil:
		return Result{}, fmt.Errorf("legacy entry %q: %w", name, err)
	}
	return Result{Metadata: m, Source: SourceLegacyEntry, Entry: name}, nil
}
