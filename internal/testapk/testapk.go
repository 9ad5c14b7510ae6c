// Package testapk builds small in-memory packages for tests.
package testapk

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/samcharles93/chanpack/pkg/sigblock"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// File is one entry of a fixture.
type File struct {
	Name    string
	Body    []byte
	Deflate bool
}

// Options describe a fixture.
type Options struct {
	Files   []File
	Comment string
	// Records, when non-empty, are written as a signing block before the
	// central directory.
	Records []sigblock.Record
}

// DefaultFiles is a minimal package body.
func DefaultFiles() []File {
	return []File{
		{Name: "AndroidManifest.xml", Body: bytes.Repeat([]byte{0x03, 0x00, 0x08, 0x00}, 64)},
		{Name: "classes.dex", Body: []byte("dex\n035\x00" + string(bytes.Repeat([]byte("x"), 512))), Deflate: true},
		{Name: "resources.arsc", Body: bytes.Repeat([]byte{0x02, 0x00, 0x0c, 0x00}, 32)},
		{Name: "META-INF/MANIFEST.MF", Body: []byte("Manifest-Version: 1.0\r\n")},
	}
}

// SignatureRecords returns a fake v2 signature and a verity padding record.
func SignatureRecords() []sigblock.Record {
	sig := make([]byte, 300)
	for i := range sig {
		sig[i] = byte(i * 7)
	}
	return []sigblock.Record{
		{ID: sigblock.IDSchemeV2, Value: sig},
		{ID: sigblock.IDVerityPadding, Value: make([]byte, 64)},
	}
}

// Build returns the bytes of a fixture.
func Build(t testing.TB, opts Options) []byte {
	t.Helper()

	files := opts.Files
	if files == nil {
		files = DefaultFiles()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Store
		if f.Deflate {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Body); err != nil {
			t.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if opts.Comment != "" {
		if err := zw.SetComment(opts.Comment); err != nil {
			t.Fatalf("set comment: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	data := buf.Bytes()
	if len(opts.Records) == 0 {
		return data
	}
	return insertBlock(t, data, sigblock.Encode(opts.Records))
}

// Signed returns the default fixture with a signing block.
func Signed(t testing.TB) []byte {
	t.Helper()
	return Build(t, Options{Records: SignatureRecords()})
}

// Unsigned returns the default fixture without a signing block.
func Unsigned(t testing.TB) []byte {
	t.Helper()
	return Build(t, Options{})
}

func insertBlock(t testing.TB, data, block []byte) []byte {
	t.Helper()

	eocd, err := zipindex.Locate(data)
	if err != nil {
		t.Fatalf("locate end record: %v", err)
	}
	cdOff := int64(eocd.CentralDirectoryOffset)

	out := make([]byte, 0, len(data)+len(block))
	out = append(out, data[:cdOff]...)
	out = append(out, block...)
	out = append(out, data[cdOff:]...)

	field := eocd.Offset + int64(len(block)) + zipindex.CDOffsetFieldOffset
	binary.LittleEndian.PutUint32(out[field:], uint32(cdOff)+uint32(len(block)))
	return out
}
