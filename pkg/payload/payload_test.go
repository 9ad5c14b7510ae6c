package payload

import (
	"errors"
	"testing"
)

func TestEncodeSorted(t *testing.T) {
	t.Parallel()

	m, err := New("huawei")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, kv := range [][2]string{{"MARKET_NAME", "Huawei AppGallery"}, {"BUILD", "7"}, {"a", "x=y"}} {
		if err := m.Set(kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%s): %v", kv[0], err)
		}
	}

	want := "BUILD=7\nCHANNEL_ID=huawei\nMARKET_NAME=Huawei AppGallery\na=x=y"
	if got := string(Encode(m)); got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
	if keys := m.Keys(); keys[0] != KeyChannelID || keys[1] != "MARKET_NAME" {
		t.Fatalf("insertion order lost: %v", keys)
	}

	back, err := Decode(Encode(m))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.Equal(m) {
		t.Fatalf("round trip = %v, want %v", back, m)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	m, err := Decode([]byte("\n  CHANNEL_ID = xiaomi \r\n\nMARKET_NAME=Xiaomi MIUI Store\nURL=https://x/?a=b\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.ChannelID() != "xiaomi" {
		t.Fatalf("channel = %q", m.ChannelID())
	}
	if v, _ := m.Get("URL"); v != "https://x/?a=b" {
		t.Fatalf("URL = %q", v)
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d", m.Len())
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no separator":  "CHANNEL_ID=a\njunk",
		"no channel":    "MARKET_NAME=x",
		"empty channel": "CHANNEL_ID=",
		"empty key":     "CHANNEL_ID=a\n=v",
		"control byte":  "CHANNEL_ID=a\x01b",
		"invalid utf8":  "CHANNEL_ID=\xff",
		"empty":         "",
	}
	for name, in := range cases {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrPayloadFormat) {
			t.Fatalf("%s: error = %v, want ErrPayloadFormat", name, err)
		}
	}
}

func TestSetRejects(t *testing.T) {
	t.Parallel()

	m := &Metadata{}
	for _, kv := range [][2]string{
		{"", "v"},
		{"A=B", "v"},
		{"K", "line\nbreak"},
		{"K", " padded"},
		{" K", "v"},
		{KeyChannelID, ""},
	} {
		if err := m.Set(kv[0], kv[1]); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("Set(%q, %q) error = %v, want ErrInvalidMetadata", kv[0], kv[1], err)
		}
	}
	if err := m.Validate(); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("Validate on empty = %v", err)
	}
}

func TestDecodeAnyJSON(t *testing.T) {
	t.Parallel()

	m, err := DecodeAny([]byte(` {"channel":"samsung","MARKET_NAME":"Samsung Galaxy Store"}`))
	if err != nil {
		t.Fatalf("DecodeAny: %v", err)
	}
	if m.ChannelID() != "samsung" {
		t.Fatalf("channel = %q", m.ChannelID())
	}
	if _, ok := m.Get("channel"); ok {
		t.Fatalf("walle key kept")
	}

	explicit, err := DecodeJSON([]byte(`{"channel":"walle","CHANNEL_ID":"own"}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if explicit.ChannelID() != "own" {
		t.Fatalf("channel = %q, want own", explicit.ChannelID())
	}

	for _, bad := range []string{`{"channel":1}`, `{"other":"x"}`, `{`} {
		if _, err := DecodeAny([]byte(bad)); !errors.Is(err, ErrPayloadFormat) {
			t.Fatalf("DecodeAny(%s) error = %v, want ErrPayloadFormat", bad, err)
		}
	}
}

func TestCloneIndependent(t *testing.T) {
	t.Parallel()

	m, _ := FromMap(map[string]string{KeyChannelID: "a", "K": "1"})
	c := m.Clone()
	if err := c.Set("K", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := m.Get("K"); v != "1" {
		t.Fatalf("clone shares state")
	}
	if m.String() != "CHANNEL_ID=a K=1" {
		t.Fatalf("String = %q", m.String())
	}
}
