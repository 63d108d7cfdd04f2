package books

import "github.com/shishobooks/folio/pkg/binder"

type ListBooksQuery struct {
	Search  *string `query:"search" json:"search,omitempty" mod:"trim" validate:"omitempty,max=200"`
	Group   *string `query:"group" json:"group,omitempty" validate:"omitempty,max=300"`
	Sort    string  `query:"sort" json:"sort,omitempty" default:"recent" validate:"oneof=recent title author series group"`
	Reverse bool    `query:"reverse" json:"reverse,omitempty"`
}

type LayoutQuery struct {
	Mode    string  `query:"mode" json:"mode,omitempty" default:"series" validate:"oneof=series group"`
	Search  *string `query:"search" json:"search,omitempty" mod:"trim" validate:"omitempty,max=200"`
	Group   *string `query:"group" json:"group,omitempty" validate:"omitempty,max=300"`
	Sort    string  `query:"sort" json:"sort,omitempty" default:"recent" validate:"oneof=recent title author series group"`
	Reverse bool    `query:"reverse" json:"reverse,omitempty"`
}

// UpdateBookPayload edits one record. Absent fields are left alone; an empty
// string clears an optional field.
type UpdateBookPayload struct {
	Title       *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=500"`
	Author      *string `json:"author,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	Genre       *string `json:"genre,omitempty" mod:"trim" validate:"omitempty,max=100"`
	ReleaseDate *string `json:"release_date,omitempty" mod:"trim" validate:"omitempty,max=50"`
	Language    *string `json:"language,omitempty" mod:"trim" validate:"omitempty,max=35"`
	Status      *string `json:"status,omitempty" mod:"trim" validate:"omitempty,max=50"`
	SeriesTitle *string `json:"series_title,omitempty" mod:"trim" validate:"omitempty,max=300"`
	SeriesIndex *string `json:"series_index,omitempty" mod:"trim" validate:"omitempty,max=20"`
	SeriesColor *string `json:"series_color,omitempty" validate:"omitempty,color"`
	Group       *string `json:"group,omitempty" mod:"trim" validate:"omitempty,max=300"`
	GroupColor  *string `json:"group_color,omitempty" validate:"omitempty,color"`
}

type GroupEditPayload struct {
	Mode  string  `json:"mode" validate:"oneof=keep set clear"`
	Name  string  `json:"name,omitempty" mod:"trim" validate:"max=300"`
	Color *string `json:"color,omitempty" validate:"omitempty,color"`
}

type SeriesEditPayload struct {
	Mode       string   `json:"mode" validate:"oneof=keep set clear"`
	Title      string   `json:"title,omitempty" mod:"trim" validate:"max=300"`
	Color      *string  `json:"color,omitempty" validate:"omitempty,color"`
	IndexMode  string   `json:"index_mode,omitempty" validate:"omitempty,oneof=keep auto same"`
	IndexStart *float64 `json:"index_start,omitempty" validate:"omitempty,min=0"`
	IndexValue string   `json:"index_value,omitempty" mod:"trim" validate:"max=20"`
}

type StatusEditPayload struct {
	Mode  string `json:"mode" validate:"oneof=keep set clear"`
	Value string `json:"value,omitempty" mod:"trim" validate:"max=50"`
}

// BulkEditPayload edits every variant of the books the given record ids
// belong to, in the order the ids are given.
type BulkEditPayload struct {
	IDs    []string           `json:"ids" validate:"required,min=1,max=1000,dive,required"`
	Group  *GroupEditPayload  `json:"group,omitempty"`
	Series *SeriesEditPayload `json:"series,omitempty"`
	Status *StatusEditPayload `json:"status,omitempty"`
}

type DeleteGroupPayload struct {
	ID string `json:"id" validate:"required"`
}

type OrganizePayload struct {
	Instruction string `json:"instruction" mod:"trim" validate:"required,max=2000"`
}

type SuggestGroupPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
}

type ImportPayload struct {
	Files binder.Uploads `json:"-"`
}
