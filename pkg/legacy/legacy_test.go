package legacy

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/samcharles93/chanpack/internal/testapk"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

func mustMetadata(t *testing.T, kv map[string]string) *payload.Metadata {
	t.Helper()
	m, err := payload.FromMap(kv)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	return m
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if _, dup := out[f.Name]; dup {
			t.Fatalf("duplicate entry %s", f.Name)
		}
		out[f.Name] = b
	}
	return out
}

func readBack(t *testing.T, data []byte) (*payload.Metadata, string) {
	t.Helper()
	eocd, err := zipindex.Locate(data)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	m, name, err := Read(data, eocd)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return m, name
}

func TestEntryName(t *testing.T) {
	t.Parallel()

	name, err := EntryName("huawei")
	if err != nil {
		t.Fatalf("EntryName: %v", err)
	}
	if name != "META-INF/channel_huawei.properties" {
		t.Fatalf("name = %q", name)
	}

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := EntryName(bad); !errors.Is(err, ErrInvalidChannelID) {
			t.Fatalf("EntryName(%q) error = %v, want ErrInvalidChannelID", bad, err)
		}
	}
}

func TestChannelFromName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{"META-INF/channel_huawei.properties", "huawei", true},
		{"META-INF/channel_oppo", "oppo", true},
		{"META-INF/channel_.properties", "", false},
		{"META-INF/MANIFEST.MF", "", false},
		{"assets/META-INF/channel_x.properties", "", false},
		{"META-INF/channel_x/y.properties", "", false},
	}
	for _, tc := range cases {
		id, ok := ChannelFromName(tc.name)
		if id != tc.id || ok != tc.ok {
			t.Fatalf("ChannelFromName(%q) = %q,%v want %q,%v", tc.name, id, ok, tc.id, tc.ok)
		}
	}
}

func TestInjectAddsEntry(t *testing.T) {
	t.Parallel()

	base := testapk.Unsigned(t)
	orig := bytes.Clone(base)
	m := mustMetadata(t, map[string]string{"CHANNEL_ID": "huawei", "MARKET_NAME": "Huawei AppGallery"})

	out, err := Inject(base, m)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !bytes.Equal(base, orig) {
		t.Fatalf("base was modified")
	}

	before := readZip(t, base)
	after := readZip(t, out)
	if len(after) != len(before)+1 {
		t.Fatalf("entries = %d, want %d", len(after), len(before)+1)
	}
	for name, body := range before {
		if !bytes.Equal(after[name], body) {
			t.Fatalf("entry %s changed", name)
		}
	}
	want := "CHANNEL_ID=huawei\nMARKET_NAME=Huawei AppGallery"
	if got := string(after["META-INF/channel_huawei.properties"]); got != want {
		t.Fatalf("entry content = %q, want %q", got, want)
	}

	// Local records of existing entries are untouched.
	eocd, err := zipindex.Locate(base)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if !bytes.Equal(out[:eocd.CentralDirectoryOffset], base[:eocd.CentralDirectoryOffset]) {
		t.Fatalf("bytes before the central directory changed")
	}

	got, name := readBack(t, out)
	if !got.Equal(m) {
		t.Fatalf("read back %v, want %v", got, m)
	}
	if name != "META-INF/channel_huawei.properties" {
		t.Fatalf("entry name = %q", name)
	}
}

func TestInjectReplacesInPlace(t *testing.T) {
	t.Parallel()

	base := testapk.Build(t, testapk.Options{Comment: "build 42"})
	first, err := Inject(base, mustMetadata(t, map[string]string{"CHANNEL_ID": "xiaomi", "K": "aaaa"}))
	if err != nil {
		t.Fatalf("first Inject: %v", err)
	}
	second, err := Inject(first, mustMetadata(t, map[string]string{"CHANNEL_ID": "xiaomi", "K": "bbbb"}))
	if err != nil {
		t.Fatalf("second Inject: %v", err)
	}

	if len(second) != len(first) {
		t.Fatalf("len = %d, want %d (tail entry overwritten)", len(second), len(first))
	}
	entries := readZip(t, second)
	if len(entries) != len(readZip(t, base))+1 {
		t.Fatalf("channel entry duplicated: %d entries", len(entries))
	}
	if got := string(entries["META-INF/channel_xiaomi.properties"]); got != "CHANNEL_ID=xiaomi\nK=bbbb" {
		t.Fatalf("content = %q", got)
	}

	eocd, err := zipindex.Locate(second)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if string(eocd.Comment) != "build 42" {
		t.Fatalf("comment = %q", eocd.Comment)
	}
}

func TestInjectReplacesAtSamePosition(t *testing.T) {
	t.Parallel()

	files := testapk.DefaultFiles()
	files = append(files[:2:2],
		testapk.File{Name: "META-INF/channel_vivo.properties", Body: []byte("CHANNEL_ID=vivo\nOLD=1")},
		files[2], files[3])
	base := testapk.Build(t, testapk.Options{Files: files})

	out, err := Inject(base, mustMetadata(t, map[string]string{"CHANNEL_ID": "vivo", "NEW": "2"}))
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if len(out) <= len(base) {
		t.Fatalf("expected appended local record, len %d -> %d", len(base), len(out))
	}

	eocd, err := zipindex.Locate(out)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	entries, err := zipindex.ListEntries(out, eocd)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("entries = %d, want %d", len(entries), len(files))
	}
	for i, f := range files {
		if entries[i].Name != f.Name {
			t.Fatalf("entry %d = %s, want %s", i, entries[i].Name, f.Name)
		}
	}

	m, _ := readBack(t, out)
	if _, ok := m.Get("OLD"); ok {
		t.Fatalf("old content still referenced: %v", m)
	}
	if v, _ := m.Get("NEW"); v != "2" {
		t.Fatalf("NEW = %q", v)
	}
}

func TestInjectRefusesSigningBlock(t *testing.T) {
	t.Parallel()

	m, _ := payload.New("huawei")
	if _, err := Inject(testapk.Signed(t), m); !errors.Is(err, ErrSigningBlockPresent) {
		t.Fatalf("Inject error = %v, want ErrSigningBlockPresent", err)
	}
}

func TestInjectRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	m, _ := payload.New("huawei")
	if _, err := Inject([]byte("not a zip at all, just some bytes"), m); !errors.Is(err, zipindex.ErrFormat) {
		t.Fatalf("Inject error = %v, want ErrFormat", err)
	}
	if _, err := Inject(testapk.Unsigned(t), &payload.Metadata{}); !errors.Is(err, payload.ErrInvalidMetadata) {
		t.Fatalf("Inject error = %v, want ErrInvalidMetadata", err)
	}
	bad, _ := payload.New("a/b")
	if _, err := Inject(testapk.Unsigned(t), bad); !errors.Is(err, ErrInvalidChannelID) {
		t.Fatalf("Inject error = %v, want ErrInvalidChannelID", err)
	}
}

func TestReadForeignEntries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file testapk.File
		want map[string]string
	}{
		{
			name: "deflated",
			file: testapk.File{Name: "META-INF/channel_oppo.properties", Body: []byte("CHANNEL_ID=oppo\nMARKET_NAME=OPPO App Market\n"), Deflate: true},
			want: map[string]string{"CHANNEL_ID": "oppo", "MARKET_NAME": "OPPO App Market"},
		},
		{
			name: "empty marker",
			file: testapk.File{Name: "META-INF/channel_meizu"},
			want: map[string]string{"CHANNEL_ID": "meizu"},
		},
		{
			name: "walle json",
			file: testapk.File{Name: "META-INF/channel_baidu.properties", Body: []byte(`{"channel":"baidu","extra":"1"}`)},
			want: map[string]string{"CHANNEL_ID": "baidu", "extra": "1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			files := append(testapk.DefaultFiles(), tc.file)
			data := testapk.Build(t, testapk.Options{Files: files})
			m, _ := readBack(t, data)
			if !m.Equal(mustMetadata(t, tc.want)) {
				t.Fatalf("read %v, want %v", m, tc.want)
			}
		})
	}
}

func TestReadNotFound(t *testing.T) {
	t.Parallel()

	data := testapk.Unsigned(t)
	eocd, err := zipindex.Locate(data)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if _, _, err := Read(data, eocd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}
}
