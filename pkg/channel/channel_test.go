package channel

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/chanpack/internal/testapk"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

func metadata(t *testing.T, kv map[string]string) *payload.Metadata {
	t.Helper()
	m, err := payload.FromMap(kv)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	return m
}

func mustPatch(t *testing.T, data []byte, m *payload.Metadata) ([]byte, Source) {
	t.Helper()
	out, src, err := Patch(data, m)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	return out, src
}

func blockSpan(t *testing.T, data []byte) (*zipindex.EndOfCentralDirectory, *sigblock.Span) {
	t.Helper()
	eocd, err := zipindex.Locate(data)
	if err != nil {
		t.Fatalf("locate end record: %v", err)
	}
	span, err := sigblock.Locate(data, eocd)
	if err != nil {
		t.Fatalf("locate block: %v", err)
	}
	return eocd, span
}

func TestPatchRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		base []byte
		src  Source
	}{
		{"signed", testapk.Signed(t), SourceSigningBlock},
		{"unsigned", testapk.Unsigned(t), SourceLegacyEntry},
		{"signed with comment", testapk.Build(t, testapk.Options{Comment: "PK\x05\x06 not a record", Records: testapk.SignatureRecords()}), SourceSigningBlock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			orig := bytes.Clone(tc.base)
			m := metadata(t, map[string]string{"CHANNEL_ID": "huawei", "MARKET_NAME": "Huawei AppGallery", "BUILD": "42"})

			out, src := mustPatch(t, tc.base, m)
			if src != tc.src {
				t.Fatalf("source = %v, want %v", src, tc.src)
			}
			if !bytes.Equal(tc.base, orig) {
				t.Fatalf("base was modified")
			}

			r, ok := Read(out)
			if !ok {
				_, err := Inspect(out)
				t.Fatalf("Read found nothing: %v", err)
			}
			if r.Source != tc.src {
				t.Fatalf("read source = %v, want %v", r.Source, tc.src)
			}
			if !r.Metadata.Equal(m) {
				t.Fatalf("read %v, want %v", r.Metadata, m)
			}

			if _, err := zip.NewReader(bytes.NewReader(out), int64(len(out))); err != nil {
				t.Fatalf("output is not a readable zip: %v", err)
			}
		})
	}
}

func TestPatchPreservesSignedRegions(t *testing.T) {
	t.Parallel()

	base := testapk.Signed(t)
	baseEOCD, baseSpan := blockSpan(t, base)
	if baseSpan == nil {
		t.Fatalf("fixture has no signing block")
	}
	baseRecords, err := sigblock.Decode(baseSpan.Bytes(base))
	if err != nil {
		t.Fatalf("decode base block: %v", err)
	}

	out, _ := mustPatch(t, base, metadata(t, map[string]string{"CHANNEL_ID": "google_play"}))
	outEOCD, outSpan := blockSpan(t, out)
	if outSpan == nil {
		t.Fatalf("output has no signing block")
	}

	// Entry data before the block.
	if outSpan.Offset != baseSpan.Offset || !bytes.Equal(out[:outSpan.Offset], base[:baseSpan.Offset]) {
		t.Fatalf("bytes before the signing block changed")
	}

	// Central directory and end record, with the offset field zeroed.
	baseTail := bytes.Clone(base[baseSpan.End():])
	outTail := bytes.Clone(out[outSpan.End():])
	field := baseEOCD.Offset - baseSpan.End() + zipindex.CDOffsetFieldOffset
	binary.LittleEndian.PutUint32(baseTail[field:], 0)
	binary.LittleEndian.PutUint32(outTail[field:], 0)
	if !bytes.Equal(baseTail, outTail) {
		t.Fatalf("central directory or end record changed beyond the offset field")
	}
	if int64(outEOCD.CentralDirectoryOffset) != outSpan.End() {
		t.Fatalf("central directory offset = %d, block ends at %d", outEOCD.CentralDirectoryOffset, outSpan.End())
	}

	// Platform records pass through byte-identical and in order.
	outRecords, err := sigblock.Decode(outSpan.Bytes(out))
	if err != nil {
		t.Fatalf("decode output block: %v", err)
	}
	if len(outRecords) != len(baseRecords)+1 {
		t.Fatalf("records = %d, want %d", len(outRecords), len(baseRecords)+1)
	}
	for i, r := range baseRecords {
		if outRecords[i].ID != r.ID || !bytes.Equal(outRecords[i].Value, r.Value) {
			t.Fatalf("record %d (%s) changed", i, r.ID)
		}
	}
	if outRecords[len(outRecords)-1].ID != sigblock.IDChannel {
		t.Fatalf("last record = %s, want channel", outRecords[len(outRecords)-1].ID)
	}
}

func TestPatchIdempotent(t *testing.T) {
	t.Parallel()

	for _, base := range [][]byte{testapk.Signed(t), testapk.Unsigned(t)} {
		m1 := metadata(t, map[string]string{"CHANNEL_ID": "oppo", "MARKET_NAME": "old"})
		m2 := metadata(t, map[string]string{"CHANNEL_ID": "oppo", "MARKET_NAME": "OPPO App Market"})

		once, _ := mustPatch(t, base, m2)
		twice, _ := mustPatch(t, once, m2)
		if !bytes.Equal(once, twice) {
			t.Fatalf("patching twice with the same metadata changed the output")
		}

		first, _ := mustPatch(t, base, m1)
		replaced, _ := mustPatch(t, first, m2)
		if !bytes.Equal(replaced, once) {
			t.Fatalf("replacing a channel differs from writing it fresh")
		}
	}
}

func TestTwoChannelScenario(t *testing.T) {
	t.Parallel()

	base := testapk.Signed(t)
	channels := []map[string]string{
		{"CHANNEL_ID": "google_play", "MARKET_NAME": "Google Play"},
		{"CHANNEL_ID": "huawei", "MARKET_NAME": "Huawei AppGallery"},
	}

	var outputs [][]byte
	for _, kv := range channels {
		out, src := mustPatch(t, base, metadata(t, kv))
		if src != SourceSigningBlock {
			t.Fatalf("%s source = %v", kv["CHANNEL_ID"], src)
		}
		outputs = append(outputs, out)
	}
	if bytes.Equal(outputs[0], outputs[1]) {
		t.Fatalf("channels produced identical packages")
	}
	for i, out := range outputs {
		r, ok := Read(out)
		if !ok {
			t.Fatalf("channel %d unreadable", i)
		}
		if got := r.Metadata.Map(); got["CHANNEL_ID"] != channels[i]["CHANNEL_ID"] || got["MARKET_NAME"] != channels[i]["MARKET_NAME"] {
			t.Fatalf("channel %d read %v, want %v", i, got, channels[i])
		}
	}
	if _, ok := Read(base); ok {
		t.Fatalf("base package reports a channel")
	}
}

func TestInspectReasons(t *testing.T) {
	t.Parallel()

	if _, err := Inspect(testapk.Signed(t)); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("signed base error = %v, want ErrNoChannel", err)
	}
	if _, err := Inspect(testapk.Unsigned(t)); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("unsigned base error = %v, want ErrNoChannel", err)
	}
	if _, err := Inspect([]byte("definitely not a package")); !errors.Is(err, zipindex.ErrFormat) {
		t.Fatalf("garbage error = %v, want ErrFormat", err)
	}

	records := append(testapk.SignatureRecords(), sigblock.Record{ID: sigblock.IDChannel, Value: []byte("no separator here")})
	bad := testapk.Build(t, testapk.Options{Records: records})
	if _, err := Inspect(bad); !errors.Is(err, payload.ErrPayloadFormat) {
		t.Fatalf("bad payload error = %v, want ErrPayloadFormat", err)
	}
	if _, ok := Read(bad); ok {
		t.Fatalf("Read accepted a bad payload")
	}
}

func TestCorruptBlock(t *testing.T) {
	t.Parallel()

	base := testapk.Signed(t)
	_, span := blockSpan(t, base)
	corrupt := bytes.Clone(base)
	binary.LittleEndian.PutUint64(corrupt[span.Offset:], uint64(span.Size))

	m := metadata(t, map[string]string{"CHANNEL_ID": "huawei"})
	if _, _, err := Patch(corrupt, m); !errors.Is(err, sigblock.ErrBlockCorrupt) {
		t.Fatalf("Patch error = %v, want ErrBlockCorrupt", err)
	}
	if _, ok := Read(corrupt); ok {
		t.Fatalf("Read accepted a corrupt block")
	}
}

func TestReadWalleRecord(t *testing.T) {
	t.Parallel()

	records := append(testapk.SignatureRecords(), sigblock.Record{ID: sigblock.IDChannel, Value: []byte(`{"channel":"meizu","campaign":"spring"}`)})
	data := testapk.Build(t, testapk.Options{Records: records})

	r, ok := Read(data)
	if !ok {
		t.Fatalf("walle record unreadable")
	}
	if r.Metadata.ChannelID() != "meizu" {
		t.Fatalf("channel = %q", r.Metadata.ChannelID())
	}
	if v, _ := r.Metadata.Get("campaign"); v != "spring" {
		t.Fatalf("campaign = %q", v)
	}
}

func TestSignedWithoutRecordFallsBackToEntry(t *testing.T) {
	t.Parallel()

	files := append(testapk.DefaultFiles(), testapk.File{Name: "META-INF/channel_tencent.properties", Body: []byte("CHANNEL_ID=tencent")})
	data := testapk.Build(t, testapk.Options{Files: files, Records: testapk.SignatureRecords()})

	r, ok := Read(data)
	if !ok || r.Source != SourceLegacyEntry || r.Metadata.ChannelID() != "tencent" {
		t.Fatalf("Read = %+v, %v", r, ok)
	}
	if r.Entry != "META-INF/channel_tencent.properties" {
		t.Fatalf("entry = %q", r.Entry)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	out, _ := mustPatch(t, testapk.Signed(t), metadata(t, map[string]string{"CHANNEL_ID": "vivo"}))
	l, err := Analyze(out)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if l.SigningBlock == nil || len(l.SigningBlock.Records) != 3 {
		t.Fatalf("signing block = %+v", l.SigningBlock)
	}
	if l.Channel == nil || l.Channel.Metadata.ChannelID() != "vivo" {
		t.Fatalf("channel = %+v (%s)", l.Channel, l.ChannelError)
	}
	if l.Entries != len(testapk.DefaultFiles()) {
		t.Fatalf("entries = %d", l.Entries)
	}
	if l.Digest != Sum(out) {
		t.Fatalf("digest mismatch")
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.apk")
	out, _ := mustPatch(t, testapk.Signed(t), metadata(t, map[string]string{"CHANNEL_ID": "lenovo"}))
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := NewCache()
	first, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !first.Found() || first.Result.Metadata.ChannelID() != "lenovo" {
		t.Fatalf("entry = %+v", first)
	}
	if first.Digest != Sum(out) {
		t.Fatalf("digest mismatch")
	}
	again, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again != first {
		t.Fatalf("second Get missed the cache")
	}

	// A different size invalidates the entry.
	if err := os.WriteFile(path, testapk.Unsigned(t), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	changed, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if changed.Found() || !errors.Is(changed.Err, ErrNoChannel) {
		t.Fatalf("changed entry = %+v", changed)
	}

	c.Invalidate(path)
	if c.Len() != 0 {
		t.Fatalf("Len after Invalidate = %d", c.Len())
	}
	if _, err := c.Get(filepath.Join(dir, "missing.apk")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v", err)
	}

	junk := filepath.Join(dir, "junk.apk")
	if err := os.WriteFile(junk, bytes.Repeat([]byte("z"), 64), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	e, err := c.Get(junk)
	if err != nil {
		t.Fatalf("Get junk: %v", err)
	}
	if !errors.Is(e.Err, zipindex.ErrFormat) {
		t.Fatalf("junk entry error = %v", e.Err)
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Len after Reset = %d", c.Len())
	}
}
