package chanconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/chanpack/pkg/legacy"
	"github.com/samcharles93/chanpack/pkg/payload"
)

// Report lists validation problems. Errors block loading; warnings do not.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether there are no errors.
func (r *Report) Valid() bool { return len(r.Errors) == 0 }

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks config bytes without decoding them into a Config.
func Validate(data []byte) *Report {
	r := &Report{}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		r.errorf("yaml: %v", err)
		return r
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		r.errorf("config must be a mapping")
		return r
	}
	root := doc.Content[0]

	if lookup(root, "version") == nil {
		r.warnf("missing version, using %s", DefaultVersion)
	}
	if out := lookup(root, "output"); out == nil {
		r.warnf("missing output, using directory %s with overwrite on", DefaultDirectory)
	} else if out.Kind != yaml.MappingNode {
		r.errorf("line %d: output must be a mapping", out.Line)
	}
	if mm := lookup(root, "market_map"); mm != nil && mm.Kind != yaml.MappingNode {
		r.errorf("line %d: market_map must be a mapping", mm.Line)
	}

	channels := lookup(root, "channels")
	switch {
	case channels == nil:
		r.errorf("missing channels")
		return r
	case channels.Kind != yaml.SequenceNode:
		r.errorf("line %d: channels must be a list", channels.Line)
		return r
	case len(channels.Content) == 0:
		r.errorf("channels is empty")
		return r
	}

	names := make(map[string]int)
	ids := make(map[string]int)
	for i, ch := range channels.Content {
		n := i + 1
		if ch.Kind != yaml.MappingNode {
			r.errorf("channel %d: must be a mapping", n)
			continue
		}
		nameNode := lookup(ch, "name")
		if nameNode == nil || nameNode.Kind != yaml.ScalarNode || nameNode.Value == "" {
			r.errorf("channel %d: missing name", n)
			continue
		}
		name := nameNode.Value
		if prev, dup := names[name]; dup {
			r.warnf("channel %d: name %q repeats channel %d", n, name, prev)
		}
		names[name] = n

		id := name
		md := lookup(ch, "metadata")
		switch {
		case md == nil:
			r.warnf("channel %d (%s): missing metadata, using an empty mapping", n, name)
		case md.Kind != yaml.MappingNode:
			r.errorf("channel %d (%s): metadata must be a mapping", n, name)
			continue
		default:
			var m Metadata
			if err := md.Decode(&m); err != nil {
				r.errorf("channel %d (%s): %v", n, name, err)
				continue
			}
			if v, ok := m.Get(payload.KeyChannelID); ok {
				id = v
			}
			for _, k := range m.Keys {
				if err := (&payload.Metadata{}).Set(k, m.Values[k]); err != nil {
					r.errorf("channel %d (%s): %v", n, name, err)
				}
			}
		}

		if _, err := legacy.EntryName(id); err != nil {
			r.errorf("channel %d (%s): %v", n, name, err)
		}
		if prev, dup := ids[id]; dup {
			r.errorf("channel %d (%s): %s %q repeats channel %d", n, name, payload.KeyChannelID, id, prev)
		}
		ids[id] = n
	}
	return r
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
