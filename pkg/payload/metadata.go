// Package payload defines channel metadata and its wire encoding.
//
// The encoding is newline-separated KEY=VALUE UTF-8 text with keys sorted, so
// equal metadata always encodes to equal bytes.
package payload

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Well-known metadata keys.
const (
	KeyChannelID  = "CHANNEL_ID"
	KeyMarketName = "MARKET_NAME"
)

var (
	// ErrPayloadFormat reports bytes that are not a channel payload.
	ErrPayloadFormat = errors.New("payload: malformed channel payload")

	// ErrInvalidMetadata reports keys or values that cannot be encoded.
	ErrInvalidMetadata = errors.New("payload: invalid metadata")
)

// Metadata is an ordered string mapping that always names a channel.
//
// Keys keep insertion order for display; encoding sorts them. The zero value
// is empty and invalid until a channel ID is set.
type Metadata struct {
	keys   []string
	values map[string]string
}

// New returns metadata holding only the channel ID.
func New(channelID string) (*Metadata, error) {
	m := &Metadata{}
	if err := m.Set(KeyChannelID, channelID); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap builds metadata from m. Keys are added in sorted order.
func FromMap(m map[string]string) (*Metadata, error) {
	md := &Metadata{}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := md.Set(k, m[k]); err != nil {
			return nil, err
		}
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// Set adds or replaces a key. Replacing keeps the key's position.
func (m *Metadata) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := checkValue(key, value); err != nil {
		return err
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return nil
}

// Get returns the value for key.
func (m *Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// ChannelID returns the channel identifier, or "" when unset.
func (m *Metadata) ChannelID() string {
	v, _ := m.Get(KeyChannelID)
	return v
}

// Keys returns keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Map returns a copy of the mapping.
func (m *Metadata) Map() map[string]string {
	out := make(map[string]string, m.Len())
	if m != nil {
		maps.Copy(out, m.values)
	}
	return out
}

// Clone returns an independent copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	return &Metadata{keys: slices.Clone(m.keys), values: maps.Clone(m.values)}
}

// Equal compares mappings; key order is ignored.
func (m *Metadata) Equal(o *Metadata) bool {
	return maps.Equal(m.Map(), o.Map())
}

// Validate checks that the channel ID is present.
func (m *Metadata) Validate() error {
	if m.ChannelID() == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidMetadata, KeyChannelID)
	}
	return nil
}

func (m *Metadata) String() string {
	return strings.ReplaceAll(string(Encode(m)), "\n", " ")
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidMetadata)
	}
	if strings.Contains(key, "=") {
		return fmt.Errorf("%w: key %q contains '='", ErrInvalidMetadata, key)
	}
	return checkText("key", key, key)
}

func checkValue(key, value string) error {
	if key == KeyChannelID && value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidMetadata, KeyChannelID)
	}
	return checkText("value of", key, value)
}

// checkText rejects text that would not survive a decode: invalid UTF-8,
// control characters (including line breaks) and surrounding whitespace.
func checkText(what, key, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s %q is not valid UTF-8", ErrInvalidMetadata, what, key)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s %q contains control character %U", ErrInvalidMetadata, what, key, r)
		}
	}
	if strings.TrimSpace(s) != s {
		return fmt.Errorf("%w: %s %q has surrounding whitespace", ErrInvalidMetadata, what, key)
	}
	return nil
}
