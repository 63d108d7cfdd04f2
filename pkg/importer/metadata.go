package importer

import (
	"bytes"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/cbz"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/htmlutil"
	"github.com/shishobooks/folio/pkg/models"
)

func init() {
	// Never read or write a pdfcpu config directory.
	api.DisableConfigDir()
}

// Cover colors assigned to imported books.
var Palette = []string{
	"#4A5568",
	"#2B6CB0",
	"#2F855A",
	"#C05621",
	"#9B2C2C",
	"#6B46C1",
	"#B7791F",
	"#2C7A7B",
	"#97266D",
	"#434190",
}

// CoverColor picks a palette color for a book. The same title and author
// always get the same color.
func CoverColor(title, author string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(title)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(author)))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// embeddedMetadata reads whatever metadata the file carries about itself.
// Formats without a reader return nil.
func embeddedMetadata(fileName, fileType string, data []byte) (*advisor.Metadata, error) {
	switch fileType {
	case "epub":
		md, err := epub.Parse(data)
		if err != nil {
			return nil, err
		}
		out := &advisor.Metadata{
			Title:       md.Title,
			Author:      strings.Join(md.Authors, ", "),
			Description: models.NonEmpty(htmlutil.StripTags(md.Description)),
			Language:    models.NonEmpty(md.Language),
			ReleaseDate: models.NonEmpty(md.Date),
			SeriesTitle: models.NonEmpty(md.Series),
		}
		out.SeriesIndex = formatIndex(md.SeriesIndex)
		return out, nil
	case "cbz":
		md, err := cbz.Parse(fileName, data)
		if err != nil {
			return nil, err
		}
		return &advisor.Metadata{
			Title:       md.Title,
			Author:      strings.Join(md.Authors, ", "),
			Description: models.NonEmpty(htmlutil.StripTags(md.Summary)),
			Genre:       models.NonEmpty(md.Genre),
			Language:    models.NonEmpty(md.Language),
			ReleaseDate: models.NonEmpty(md.Date),
			SeriesTitle: models.NonEmpty(md.Series),
			SeriesIndex: formatIndex(md.SeriesNumber),
		}, nil
	case "pdf":
		return pdfMetadata(data)
	}
	return nil, nil
}

func formatIndex(f *float64) *string {
	if f == nil {
		return nil
	}
	s := strconv.FormatFloat(*f, 'f', -1, 64)
	return &s
}

func pdfMetadata(data []byte) (*advisor.Metadata, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &advisor.Metadata{
		Title:       strings.TrimSpace(ctx.Title),
		Author:      strings.TrimSpace(ctx.Author),
		Description: models.NonEmpty(ctx.Subject),
	}, nil
}
