// Package legacy stores channel metadata as a plain zip entry.
//
// It is the write path for containers without a signing block. The entry is
// named META-INF/channel_<id>.properties and stored uncompressed. Read-side
// clients find it with a forward scan of entry names, so the naming is a
// contract and must not change.
package legacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Entry naming.
const (
	EntryPrefix = "META-INF/"
	EntryMarker = "channel_"
	EntrySuffix = ".properties"
)

var (
	// ErrSigningBlockPresent reports a container that must be patched
	// through its signing block instead.
	ErrSigningBlockPresent = errors.New("legacy: container has a signing block")

	// ErrInvalidChannelID reports an ID that cannot be part of an entry name.
	ErrInvalidChannelID = errors.New("legacy: channel id not usable in an entry name")

	// ErrNotFound reports a container with no channel entry.
	ErrNotFound = errors.New("legacy: no channel entry")
)

// EntryName returns the entry name for a channel ID.
func EntryName(channelID string) (string, error) {
	if channelID == "" || channelID == "." || channelID == ".." ||
		strings.ContainsAny(channelID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannelID, channelID)
	}
	return EntryPrefix + EntryMarker + channelID + EntrySuffix, nil
}

// ChannelFromName reports whether name is a channel entry and returns its ID.
//
// Entries without the suffix are accepted too; older tools wrote empty marker
// files named META-INF/channel_<id>.
func ChannelFromName(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, EntryPrefix+EntryMarker)
	if !ok || strings.Contains(rest, "/") {
		return "", false
	}
	rest = strings.TrimSuffix(rest, EntrySuffix)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func ensureNoSigningBlock(data []byte, eocd *zipindex.EndOfCentralDirectory) error {
	span, err := sigblock.Locate(data, eocd)
	if err != nil {
		return err
	}
	if span != nil {
		return ErrSigningBlockPresent
	}
	return nil
}
