package importer

import (
	"path/filepath"
	"strings"
)

// Extensions lists the recognized ebook formats, by extension without the dot.
var Extensions = []string{"epub", "pdf", "mobi", "azw", "azw3", "fb2", "djvu", "cbz", "cbr"}

// Mime types a file's contents may sniff as for its extension. Extensions not
// listed here aren't checked.
var expectedMimeTypes = map[string]map[string]struct{}{
	"epub": {"application/epub+zip": {}, "application/zip": {}},
	"pdf":  {"application/pdf": {}},
	"cbz":  {"application/zip": {}},
	"cbr":  {"application/x-rar-compressed": {}, "application/vnd.rar": {}},
	"mobi": {"application/x-mobipocket-ebook": {}},
	"azw":  {"application/x-mobipocket-ebook": {}},
	"azw3": {"application/x-mobipocket-ebook": {}},
	"djvu": {"image/vnd.djvu": {}},
}

// FileType returns the lowercased extension of fileName without the dot.
func FileType(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// Accepts reports whether fileName has a recognized ebook extension.
func Accepts(fileName string) bool {
	ext := FileType(fileName)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// BaseTitle is the file name without its directory or extension, used as the
// title when nothing better is known.
func BaseTitle(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
