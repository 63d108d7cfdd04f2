// Package testgen builds ebook files in memory with configurable metadata for
// importer and parser tests.
package testgen

import (
	"archive/zip"
	"bytes"
	"testing"
)

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	Title        string
	Authors      []string
	Language     string // defaults to "en"
	Description  string // may contain HTML
	Series       string
	SeriesNumber *float64
}

// CBZOptions configures the generated CBZ file.
type CBZOptions struct {
	Title        string
	Series       string
	SeriesNumber *float64
	Writer       string
	Penciller    string
	Year         int
	PageCount    int  // defaults to 3
	HasComicInfo bool // whether to include ComicInfo.xml
}

// zipBuilder collects zip entries and fails the test on any write error.
type zipBuilder struct {
	t   *testing.T
	buf *bytes.Buffer
	zw  *zip.Writer
}

func newZipBuilder(t *testing.T) *zipBuilder {
	buf := &bytes.Buffer{}
	return &zipBuilder{t: t, buf: buf, zw: zip.NewWriter(buf)}
}

func (b *zipBuilder) add(name string, data []byte, method uint16) {
	b.t.Helper()
	w, err := b.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		b.t.Fatalf("failed to create %s: %v", name, err)
	}
	if _, err := w.Write(data); err != nil {
		b.t.Fatalf("failed to write %s: %v", name, err)
	}
}

func (b *zipBuilder) bytes() []byte {
	b.t.Helper()
	if err := b.zw.Close(); err != nil {
		b.t.Fatalf("failed to close zip: %v", err)
	}
	return b.buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
