// Package chanconfig loads the YAML list of channels to generate.
//
//	version: "1.0"
//	output:
//	  directory: ./channels
//	  overwrite: true
//	market_map:
//	  huawei: Huawei AppGallery
//	channels:
//	  - name: huawei
//	    metadata:
//	      CHANNEL_ID: huawei
//	      MARKET_NAME: Huawei AppGallery
package chanconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults for omitted sections.
const (
	DefaultVersion   = "1.0"
	DefaultDirectory = "./channels"
)

// ErrInvalid reports a config with validation errors.
var ErrInvalid = errors.New("chanconfig: invalid channel config")

// Config is a parsed channel config.
type Config struct {
	Version   string            `yaml:"version"`
	Output    Output            `yaml:"output"`
	MarketMap map[string]string `yaml:"market_map,omitempty"`
	Channels  []Channel         `yaml:"channels"`
}

// Output controls where packages go.
type Output struct {
	Directory string `yaml:"directory"`
	Overwrite *bool  `yaml:"overwrite,omitempty"`
}

// OverwriteOrDefault returns the overwrite setting, true when unset.
func (o Output) OverwriteOrDefault() bool {
	return o.Overwrite == nil || *o.Overwrite
}

// Channel is one channel entry.
type Channel struct {
	Name     string   `yaml:"name"`
	Metadata Metadata `yaml:"metadata"`
}

// Metadata is a string mapping that keeps the file's key order.
type Metadata struct {
	Keys   []string
	Values map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Metadata) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: metadata must be a mapping", node.Line)
	}
	m.Keys = nil
	m.Values = make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: metadata value for %q must be a scalar", v.Line, k.Value)
		}
		if _, dup := m.Values[k.Value]; !dup {
			m.Keys = append(m.Keys, k.Value)
		}
		m.Values[k.Value] = v.Value
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m Metadata) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.Keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: m.Values[k]},
		)
	}
	return node, nil
}

// Get returns the value for key.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// Load reads and validates the config at path. Warnings are returned even
// when loading succeeds.
func Load(path string) (*Config, *Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Parse(data)
}

// Parse validates and decodes config bytes.
func Parse(data []byte) (*Config, *Report, error) {
	report := Validate(data)
	if !report.Valid() {
		return nil, report, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(report.Errors, "; "))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.applyDefaults()
	return &cfg, report, nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Output.Directory == "" {
		c.Output.Directory = DefaultDirectory
	}
	for i := range c.Channels {
		if c.Channels[i].Metadata.Values == nil {
			c.Channels[i].Metadata.Values = map[string]string{}
		}
	}
}

// Channel returns the channel with the given name.
func (c *Config) Channel(name string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}
