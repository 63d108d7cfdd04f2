package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	UnknownTitle  = "Unknown"
	UnknownAuthor = "Unknown"
)

// Book is one imported file and its metadata. Several Books with the same
// normalized title and author are shown together as one logical book.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID          string    `bun:",pk" json:"id"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Title       string    `bun:",notnull" json:"title"`
	Author      string    `bun:",notnull" json:"author"`
	Description *string   `json:"description,omitempty"`
	Genre       *string   `json:"genre,omitempty"`
	ReleaseDate *string   `json:"release_date,omitempty"`
	Language    *string   `json:"language,omitempty"`
	Status      *string   `json:"status,omitempty"`
	SeriesTitle *string   `json:"series_title,omitempty"`
	SeriesIndex *string   `json:"series_index,omitempty"`
	SeriesColor *string   `json:"series_color,omitempty"`
	Group       *string   `bun:"group_name" json:"group,omitempty"`
	GroupColor  *string   `json:"group_color,omitempty"`
	FileName    string    `bun:",notnull" json:"file_name"`
	FileType    string    `bun:",notnull" json:"file_type"`
	FileSize    int64     `bun:",notnull" json:"file_size"`
	AddedAt     int64     `bun:",notnull" json:"added_at"`
	CoverColor  string    `bun:",notnull" json:"cover_color"`
	FileData    []byte    `bun:",notnull" json:"-"`
}

// DisplayTitle is the title shown to the user, which is never empty.
func (b *Book) DisplayTitle() string {
	if t := strings.TrimSpace(b.Title); t != "" {
		return t
	}
	return UnknownTitle
}

// DisplayAuthor is the author shown to the user, which is never empty.
func (b *Book) DisplayAuthor() string {
	if a := strings.TrimSpace(b.Author); a != "" {
		return a
	}
	return UnknownAuthor
}

// Clone returns a shallow copy. Optional fields are only ever replaced, never
// written through, so sharing the pointers is safe.
func (b *Book) Clone() *Book {
	c := *b
	return &c
}

// StringValue dereferences an optional field, treating nil as "".
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NonEmpty returns nil for blank strings so that "" and absent are stored the
// same way.
func NonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
