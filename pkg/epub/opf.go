package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Metadata is what an EPUB says about itself in its package document.
type Metadata struct {
	Title       string
	Authors     []string
	Description string
	Language    string
	Date        string
	Series      string
	SeriesIndex *float64
}

type container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Description string `xml:"description"`
		Date        string `xml:"date"`
		Language    string `xml:"language"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// Parse reads the package document out of an EPUB held in memory.
func Parse(data []byte) (*Metadata, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	opfPath, err := rootfilePath(zr)
	if err != nil {
		return nil, err
	}

	for _, file := range zr.File {
		if file.Name != opfPath {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer r.Close()
		return ParseOPF(r)
	}

	return nil, errors.New("no opf file found")
}

// rootfilePath finds the package document, preferring the path named by
// META-INF/container.xml and falling back to the first .opf in the archive.
func rootfilePath(zr *zip.Reader) (string, error) {
	for _, file := range zr.File {
		if file.Name != "META-INF/container.xml" {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return "", errors.WithStack(err)
		}
		c := &container{}
		err = xml.NewDecoder(r).Decode(c)
		r.Close()
		if err == nil {
			for _, rf := range c.Rootfiles.Rootfile {
				if rf.FullPath != "" {
					return rf.FullPath, nil
				}
			}
		}
		break
	}

	for _, file := range zr.File {
		if path.Ext(file.Name) == ".opf" {
			return file.Name, nil
		}
	}
	return "", errors.New("no opf file found")
}

func ParseOPF(r io.Reader) (*Metadata, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	if err := xml.Unmarshal(b, pkg); err != nil {
		return nil, errors.WithStack(err)
	}

	// EPUB 3 attaches properties to elements with <meta refines="#id">, EPUB 2
	// uses <meta name content>.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
		} else if m.Content != "" {
			metaContent[m.Name] = strings.TrimSpace(m.Content)
		} else if m.Property != "" {
			metaContent[m.Property] = strings.TrimSpace(m.Text)
		}
	}

	title := ""
	if len(pkg.Metadata.Title) > 0 {
		title = pkg.Metadata.Title[0].Text
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		name := strings.TrimSpace(creator.Text)
		if name == "" {
			continue
		}
		if role == "aut" || role == "" || len(pkg.Metadata.Creator) == 1 {
			authors = append(authors, name)
		}
	}

	series := metaContent["calibre:series"]
	seriesIndex := metaContent["calibre:series_index"]
	if series == "" {
		series = metaContent["belongs-to-collection"]
	}

	md := &Metadata{
		Title:       strings.TrimSpace(title),
		Authors:     authors,
		Description: strings.TrimSpace(pkg.Metadata.Description),
		Language:    strings.TrimSpace(pkg.Metadata.Language),
		Date:        strings.TrimSpace(pkg.Metadata.Date),
		Series:      series,
	}
	if seriesIndex != "" {
		if num, err := strconv.ParseFloat(seriesIndex, 64); err == nil {
			md.SeriesIndex = &num
		}
	}
	return md, nil
}
