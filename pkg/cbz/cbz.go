// Package cbz reads the metadata of comic book archives from the
// ComicInfo.xml they may carry.
package cbz

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ComicInfo struct {
	XMLName     xml.Name `xml:"ComicInfo"`
	Title       string   `xml:"Title"`
	Series      string   `xml:"Series"`
	Number      string   `xml:"Number"`
	Year        string   `xml:"Year"`
	Month       string   `xml:"Month"`
	Day         string   `xml:"Day"`
	Writer      string   `xml:"Writer"`
	Penciller   string   `xml:"Penciller"`
	Summary     string   `xml:"Summary"`
	Genre       string   `xml:"Genre"`
	LanguageISO string   `xml:"LanguageISO"`
}

// Metadata is what a comic archive says about itself. Authors are the
// writers, falling back to the pencillers when no writer is listed.
type Metadata struct {
	Title        string
	Authors      []string
	Series       string
	SeriesNumber *float64
	Summary      string
	Genre        string
	Language     string
	Date         string
}

var seriesNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)#(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`(?i)v(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`(?i)\s+(\d+(?:\.\d+)?)$`),
}

// Parse reads the ComicInfo.xml inside a CBZ archive. An archive without one
// yields empty metadata plus whatever the file name gives away.
func Parse(fileName string, data []byte) (*Metadata, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var info *ComicInfo
	for _, file := range zr.File {
		if strings.ToLower(filepath.Base(file.Name)) == "comicinfo.xml" {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			info, err = ParseComicInfo(r)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	md := &Metadata{}
	if info != nil {
		md.Title = strings.TrimSpace(info.Title)
		md.Series = strings.TrimSpace(info.Series)
		md.Summary = strings.TrimSpace(info.Summary)
		md.Genre = firstCreator(info.Genre)
		md.Language = strings.TrimSpace(info.LanguageISO)
		md.Date = releaseDate(info.Year, info.Month, info.Day)
		md.Authors = splitCreators(info.Writer)
		if len(md.Authors) == 0 {
			md.Authors = splitCreators(info.Penciller)
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(info.Number), 64); err == nil {
			md.SeriesNumber = &n
		}
	}

	if md.SeriesNumber == nil {
		md.SeriesNumber = seriesNumberFromFileName(fileName)
	}
	return md, nil
}

func ParseComicInfo(r io.ReadCloser) (*ComicInfo, error) {
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comicInfo := &ComicInfo{}
	err = xml.Unmarshal(b, comicInfo)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return comicInfo, nil
}

// releaseDate formats as much of the date as is known: 2019, 2019-03 or
// 2019-03-07.
func releaseDate(year, month, day string) string {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return ""
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return strconv.Itoa(y)
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return fmt.Sprintf("%04d-%02d", y, m)
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func splitCreators(creators string) []string {
	if creators == "" {
		return nil
	}

	parts := strings.Split(creators, ",")
	result := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func firstCreator(list string) string {
	if parts := splitCreators(list); len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// seriesNumberFromFileName finds an issue number at the end of the name:
// "Saga #7", "Saga v7" or "Saga 7.5".
func seriesNumberFromFileName(fileName string) *float64 {
	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	for _, re := range seriesNumberPatterns {
		if matches := re.FindStringSubmatch(name); len(matches) >= 2 {
			if num, err := strconv.ParseFloat(matches[1], 64); err == nil {
				return &num
			}
		}
	}

	return nil
}
