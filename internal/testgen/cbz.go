package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"testing"
)

// CBZ returns a valid CBZ holding opts.PageCount PNG pages and, when
// HasComicInfo is set, a ComicInfo.xml.
func CBZ(t *testing.T, opts CBZOptions) []byte {
	t.Helper()

	b := newZipBuilder(t)

	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 3
	}

	if opts.HasComicInfo {
		b.add("ComicInfo.xml", []byte(generateComicInfo(opts, pageCount)), zip.Deflate)
	}

	page := generatePage(t)
	for i := 0; i < pageCount; i++ {
		b.add(fmt.Sprintf("%03d.png", i), page, zip.Store)
	}

	return b.bytes()
}

func generateComicInfo(opts CBZOptions, pageCount int) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ComicInfo>
`)

	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("  <Title>%s</Title>\n", escapeXML(opts.Title)))
	}
	if opts.Series != "" {
		buf.WriteString(fmt.Sprintf("  <Series>%s</Series>\n", escapeXML(opts.Series)))
	}
	if opts.SeriesNumber != nil {
		buf.WriteString(fmt.Sprintf("  <Number>%s</Number>\n", strconv.FormatFloat(*opts.SeriesNumber, 'f', -1, 64)))
	}
	if opts.Writer != "" {
		buf.WriteString(fmt.Sprintf("  <Writer>%s</Writer>\n", escapeXML(opts.Writer)))
	}
	if opts.Penciller != "" {
		buf.WriteString(fmt.Sprintf("  <Penciller>%s</Penciller>\n", escapeXML(opts.Penciller)))
	}
	if opts.Year > 0 {
		buf.WriteString(fmt.Sprintf("  <Year>%d</Year>\n", opts.Year))
	}
	buf.WriteString(fmt.Sprintf("  <PageCount>%d</PageCount>\n", pageCount))

	buf.WriteString("</ComicInfo>")

	return buf.String()
}

func generatePage(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}
