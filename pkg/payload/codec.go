package payload

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// walleChannelKey is the key walle stores the channel under in its JSON payload.
const walleChannelKey = "channel"

// Encode serialises m as sorted KEY=VALUE lines.
func Encode(m *Metadata) []byte {
	if m.Len() == 0 {
		return nil
	}
	keys := slices.Sorted(slices.Values(m.keys))

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(m.values[k])
	}
	return buf.Bytes()
}

// Decode parses KEY=VALUE lines.
//
// Each line is split on its first '=' and both halves are trimmed. Blank lines
// are skipped. The result must contain a channel ID.
func Decode(b []byte) (*Metadata, error) {
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrPayloadFormat)
	}

	m := &Metadata{}
	for n, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d has no '='", ErrPayloadFormat, n+1)
		}
		// Set rejects control characters left after trimming.
		if err := m.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrPayloadFormat, n+1, err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadFormat, err)
	}
	return m, nil
}

// DecodeJSON parses the flat JSON object written by walle-compatible tools.
//
// The "channel" key becomes the channel ID unless the object also carries
// CHANNEL_ID. Non-string values are rejected.
func DecodeJSON(b []byte) (*Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadFormat, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: value of %q is %T, not a string", ErrPayloadFormat, k, v)
		}
		values[k] = s
	}
	if ch, ok := values[walleChannelKey]; ok {
		if _, has := values[KeyChannelID]; !has {
			values[KeyChannelID] = ch
		}
		delete(values, walleChannelKey)
	}

	m, err := FromMap(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadFormat, err)
	}
	return m, nil
}

// DecodeAny accepts either the KEY=VALUE form or a walle JSON object.
func DecodeAny(b []byte) (*Metadata, error) {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(trimmed)
	}
	return Decode(b)
}
