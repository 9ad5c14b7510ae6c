package chanconfig

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samcharles93/chanpack/internal/packager"
	"github.com/samcharles93/chanpack/pkg/payload"
)

// storeNames maps well-known channel names to their market names.
var storeNames = map[string]string{
	"google_play": "Google Play",
	"huawei":      "Huawei AppGallery",
	"xiaomi":      "Xiaomi MIUI Store",
	"oppo":        "OPPO App Market",
	"vivo":        "vivo App Store",
	"meizu":       "Meizu Flyme Store",
	"samsung":     "Samsung Galaxy Store",
	"lenovo":      "Lenovo App Store",
	"360":         "360 Mobile Assistant",
	"baidu":       "Baidu Mobile Assistant",
	"tencent":     "Tencent MyApp",
	"yingyongbao": "应用宝",
}

// MarketName resolves the market name of a channel: its own MARKET_NAME, then
// the config's market_map, then the built-in store table, then the
// capitalised channel name.
func (c *Config) MarketName(ch Channel) string {
	if v, ok := ch.Metadata.Get(payload.KeyMarketName); ok && v != "" {
		return v
	}
	if v, ok := c.MarketMap[ch.Name]; ok && v != "" {
		return v
	}
	return DefaultMarketName(ch.Name)
}

// DefaultMarketName returns the built-in market name for a channel.
func DefaultMarketName(name string) string {
	if v, ok := storeNames[name]; ok {
		return v
	}
	return capitalize(name)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// ChannelMetadata builds the metadata written for ch. CHANNEL_ID defaults to
// the channel name and MARKET_NAME is always filled in.
func (c *Config) ChannelMetadata(ch Channel) (*payload.Metadata, error) {
	m := &payload.Metadata{}
	id, ok := ch.Metadata.Get(payload.KeyChannelID)
	if !ok || id == "" {
		id = ch.Name
	}
	if err := m.Set(payload.KeyChannelID, id); err != nil {
		return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
	}
	for _, k := range ch.Metadata.Keys {
		if k == payload.KeyChannelID {
			continue
		}
		if err := m.Set(k, ch.Metadata.Values[k]); err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
	}
	if _, ok := m.Get(payload.KeyMarketName); !ok {
		if err := m.Set(payload.KeyMarketName, c.MarketName(ch)); err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
	}
	return m, nil
}

// OutputDir resolves the output directory. A relative directory is taken
// from the base package's directory; override, when set, wins.
func (c *Config) OutputDir(basePath, override string) string {
	dir := c.Output.Directory
	if override != "" {
		return filepath.Clean(override)
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(filepath.Dir(basePath), dir)
}

// OutputName returns <base-name>_<channel-id><ext>.
func OutputName(basePath, channelID string) string {
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + channelID + ext
}

// Requests turns every configured channel into a packager request.
func (c *Config) Requests(basePath, outputDir string) ([]packager.Request, error) {
	dir := c.OutputDir(basePath, outputDir)
	reqs := make([]packager.Request, 0, len(c.Channels))
	for _, ch := range c.Channels {
		m, err := c.ChannelMetadata(ch)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, packager.Request{
			Channel:  ch.Name,
			Metadata: m,
			Output:   filepath.Join(dir, OutputName(basePath, m.ChannelID())),
		})
	}
	return reqs, nil
}
