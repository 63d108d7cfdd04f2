// Package htmlutil turns the HTML fragments found in ebook metadata into
// plain text.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements that start a new line in the plain text.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "tr": {}, "blockquote": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// Elements whose text is never shown.
var hiddenTags = map[string]struct{}{
	"script": {}, "style": {}, "head": {}, "title": {},
}

// StripTags returns the text of an HTML fragment with entities decoded.
// Block elements become line breaks, whitespace within a line collapses to
// single spaces, and blank lines are dropped. Plain text passes through
// apart from the whitespace cleanup.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidy(b.String())
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if _, ok := hiddenTags[string(name)]; ok {
				if tt == html.StartTagToken {
					hidden++
				} else if tt == html.EndTagToken && hidden > 0 {
					hidden--
				}
				continue
			}
			if _, ok := blockTags[string(name)]; ok {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
	}
}

func tidy(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
