package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strconv"
	"testing"
)

// EPUB returns a valid EPUB with the given metadata. It contains mimetype,
// container.xml, content.opf, and a single chapter.
func EPUB(t *testing.T, opts EPUBOptions) []byte {
	t.Helper()

	b := newZipBuilder(t)

	// mimetype must be first and uncompressed
	b.add("mimetype", []byte("application/epub+zip"), zip.Store)

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	b.add("META-INF/container.xml", []byte(containerXML), zip.Deflate)
	b.add("OEBPS/content.opf", []byte(generateOPF(opts)), zip.Deflate)

	chapterContent := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>Chapter 1</title>
</head>
<body>
  <h1>Chapter 1</h1>
  <p>This is a test chapter.</p>
</body>
</html>`
	b.add("OEBPS/chapter1.xhtml", []byte(chapterContent), zip.Deflate)

	return b.bytes()
}

func generateOPF(opts EPUBOptions) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	// Only include a title if provided, to exercise the file name fallback.
	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title)))
	}
	for i, author := range opts.Authors {
		buf.WriteString(fmt.Sprintf("    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, escapeXML(author)))
	}

	buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	language := opts.Language
	if language == "" {
		language = "en"
	}
	buf.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", escapeXML(language)))
	if opts.Description != "" {
		buf.WriteString(fmt.Sprintf("    <dc:description>%s</dc:description>\n", escapeXML(opts.Description)))
	}

	// calibre's series format
	if opts.Series != "" {
		buf.WriteString(fmt.Sprintf("    <meta name=\"calibre:series\" content=\"%s\"/>\n", escapeXML(opts.Series)))
		if opts.SeriesNumber != nil {
			idx := strconv.FormatFloat(*opts.SeriesNumber, 'f', -1, 64)
			buf.WriteString(fmt.Sprintf("    <meta name=\"calibre:series_index\" content=\"%s\"/>\n", idx))
		}
	}

	buf.WriteString(`  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`)

	return buf.String()
}
