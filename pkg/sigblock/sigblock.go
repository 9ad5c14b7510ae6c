// Package sigblock reads and rewrites the APK signing block.
//
// The signing block sits immediately before the zip central directory:
//
//	uint64 size                  (bytes that follow this field)
//	repeated:
//	    uint64 length            (4 + len(value))
//	    uint32 id
//	    value
//	uint64 size                  (same value as the head)
//	[16]byte "APK Sig Block 42"
//
// Records are kept in their original order. Platform signature records are
// carried through untouched; only the private channel record is written.
package sigblock

import (
	"errors"
	"fmt"
)

// Magic terminates every signing block.
const Magic = "APK Sig Block 42"

const (
	sizeFieldLen   = 8
	idFieldLen     = 4
	magicLen       = len(Magic)
	footerLen      = sizeFieldLen + magicLen
	minBlockSize   = sizeFieldLen + footerLen
	maxRecordValue = 1<<31 - 1
)

var (
	// ErrBlockCorrupt reports a signing block whose magic matched but whose
	// framing is inconsistent.
	ErrBlockCorrupt = errors.New("sigblock: corrupt signing block")

	// ErrReservedID reports an attempt to write a platform-reserved record.
	ErrReservedID = errors.New("sigblock: reserved record id")
)

// ID identifies a record inside the signing block.
type ID uint32

// Record IDs written by the Android toolchain and by this engine.
const (
	IDSchemeV2       ID = 0x7109871a
	IDSchemeV3       ID = 0xf05368c0
	IDSchemeV31      ID = 0x1b93ad61
	IDVerityPadding  ID = 0x42726577
	IDSourceStamp    ID = 0x6dff800d
	IDDependencyInfo ID = 0x504b4453

	// IDChannel holds the channel metadata payload. It matches the
	// identifier used by walle so packages stay readable by its clients.
	IDChannel ID = 0x71777777
)

var reservedIDs = map[ID]string{
	IDSchemeV2:       "v2 signature",
	IDSchemeV3:       "v3 signature",
	IDSchemeV31:      "v3.1 signature",
	IDVerityPadding:  "verity padding",
	IDSourceStamp:    "source stamp",
	IDDependencyInfo: "dependency info",
}

// Reserved reports whether id belongs to the platform.
func (id ID) Reserved() bool {
	_, ok := reservedIDs[id]
	return ok
}

func (id ID) String() string {
	if name, ok := reservedIDs[id]; ok {
		return fmt.Sprintf("%#08x (%s)", uint32(id), name)
	}
	if id == IDChannel {
		return fmt.Sprintf("%#08x (channel)", uint32(id))
	}
	return fmt.Sprintf("%#08x", uint32(id))
}

// Record is one id/value pair.
type Record struct {
	ID    ID
	Value []byte
}

// Find returns the value of the first record with the given id.
func Find(records []Record, id ID) ([]byte, bool) {
	for _, r := range records {
		if r.ID == id {
			return r.Value, true
		}
	}
	return nil, false
}
