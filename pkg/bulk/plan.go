package bulk

import (
	"strconv"
	"strings"

	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/library"
	"github.com/shishobooks/folio/pkg/models"
)

// Mode says what a batch edit does to one family of fields.
type Mode string

const (
	ModeKeep  Mode = "keep"
	ModeSet   Mode = "set"
	ModeClear Mode = "clear"
)

// IndexMode says how series indices are assigned when a series is set.
type IndexMode string

const (
	// IndexKeep leaves each record's index alone.
	IndexKeep IndexMode = "keep"
	// IndexAuto numbers the selection from IndexStart in selection order.
	IndexAuto IndexMode = "auto"
	// IndexSame gives every selected book the same index.
	IndexSame IndexMode = "same"
)

type GroupEdit struct {
	Mode  Mode
	Name  string
	Color *string
}

type SeriesEdit struct {
	Mode       Mode
	Title      string
	Color      *string
	IndexMode  IndexMode
	IndexStart float64
	IndexValue string
}

type StatusEdit struct {
	Mode  Mode
	Value string
}

// Request is one batch edit applied to every variant of every selected book.
type Request struct {
	Group  GroupEdit
	Series SeriesEdit
	Status StatusEdit
}

// Field is a pending change to one optional field. A nil Value clears it.
type Field struct {
	Value *string
}

func set(v string) *Field {
	return &Field{Value: &v}
}

func setPtr(v *string) *Field {
	return &Field{Value: v}
}

func unset() *Field {
	return &Field{}
}

// Changes lists the fields a write touches. Nil fields are left as they are.
type Changes struct {
	Group       *Field
	GroupColor  *Field
	SeriesTitle *Field
	SeriesIndex *Field
	SeriesColor *Field
	Status      *Field
}

// Empty reports whether the changes touch nothing.
func (c Changes) Empty() bool {
	return c.Group == nil && c.GroupColor == nil &&
		c.SeriesTitle == nil && c.SeriesIndex == nil && c.SeriesColor == nil &&
		c.Status == nil
}

// Apply writes the changes onto b.
func (c Changes) Apply(b *models.Book) {
	apply := func(f *Field, dst **string) {
		if f == nil {
			return
		}
		if f.Value == nil {
			*dst = nil
			return
		}
		v := *f.Value
		*dst = &v
	}
	apply(c.Group, &b.Group)
	apply(c.GroupColor, &b.GroupColor)
	apply(c.SeriesTitle, &b.SeriesTitle)
	apply(c.SeriesIndex, &b.SeriesIndex)
	apply(c.SeriesColor, &b.SeriesColor)
	apply(c.Status, &b.Status)
}

// Write is one record-level step of a plan.
type Write struct {
	RecordID string
	Changes  Changes
}

// Plan is the complete, ordered list of writes for a batch edit. Every value
// in it is fixed when the plan is built, so the writes can run in any order
// or in parallel without changing the outcome.
type Plan struct {
	Request Request
	// PerGroup holds the changes computed for each selected group, in
	// selection order.
	PerGroup []Changes
	Writes   []Write
}

// NewPlan computes the writes for req over the selected groups. It doesn't
// touch the store.
func NewPlan(groups []*library.BookGroup, req Request) (*Plan, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Request: req}
	for i, g := range groups {
		changes := changesFor(req, i)
		plan.PerGroup = append(plan.PerGroup, changes)
		if changes.Empty() {
			continue
		}
		for _, v := range g.Variants {
			plan.Writes = append(plan.Writes, Write{RecordID: v.ID, Changes: changes})
		}
	}
	return plan, nil
}

func changesFor(req Request, position int) Changes {
	c := Changes{}

	switch req.Group.Mode {
	case ModeSet:
		// Every member gets the same color, none when no color is given.
		c.Group = set(req.Group.Name)
		c.GroupColor = setPtr(req.Group.Color)
	case ModeClear:
		c.Group = unset()
		c.GroupColor = unset()
	}

	switch req.Series.Mode {
	case ModeSet:
		c.SeriesTitle = set(req.Series.Title)
		c.SeriesColor = setPtr(req.Series.Color)
		switch req.Series.IndexMode {
		case IndexAuto:
			c.SeriesIndex = set(FormatIndex(req.Series.IndexStart + float64(position)))
		case IndexSame:
			c.SeriesIndex = set(req.Series.IndexValue)
		}
	case ModeClear:
		c.SeriesTitle = unset()
		c.SeriesIndex = unset()
		c.SeriesColor = unset()
	}

	switch req.Status.Mode {
	case ModeSet:
		c.Status = set(req.Status.Value)
	case ModeClear:
		c.Status = unset()
	}

	return c
}

// FormatIndex renders a series index without trailing zeros: 5, 2.5.
func FormatIndex(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func normalizeRequest(req Request) (Request, error) {
	var err error
	if req.Group.Mode, err = normalizeMode(req.Group.Mode, "group"); err != nil {
		return req, err
	}
	if req.Series.Mode, err = normalizeMode(req.Series.Mode, "series"); err != nil {
		return req, err
	}
	if req.Status.Mode, err = normalizeMode(req.Status.Mode, "status"); err != nil {
		return req, err
	}

	req.Group.Name = strings.TrimSpace(req.Group.Name)
	req.Group.Color = models.NonEmpty(models.StringValue(req.Group.Color))
	if req.Group.Mode == ModeSet && req.Group.Name == "" {
		return req, errcodes.ValidationError("a group name is required to set a group")
	}

	req.Series.Title = strings.TrimSpace(req.Series.Title)
	req.Series.Color = models.NonEmpty(models.StringValue(req.Series.Color))
	req.Series.IndexValue = strings.TrimSpace(req.Series.IndexValue)
	if req.Series.Mode == ModeSet {
		if req.Series.Title == "" {
			return req, errcodes.ValidationError("a series title is required to set a series")
		}
		switch req.Series.IndexMode {
		case "", IndexKeep:
			req.Series.IndexMode = IndexKeep
		case IndexAuto:
		case IndexSame:
			if req.Series.IndexValue == "" {
				return req, errcodes.ValidationError("a series index is required when every book gets the same index")
			}
		default:
			return req, errcodes.ValidationError(`series index mode must be one of keep, auto, same`)
		}
	}

	req.Status.Value = strings.TrimSpace(req.Status.Value)
	if req.Status.Mode == ModeSet && req.Status.Value == "" {
		return req, errcodes.ValidationError("a status is required to set a status")
	}

	return req, nil
}

func normalizeMode(m Mode, family string) (Mode, error) {
	switch m {
	case "", ModeKeep:
		return ModeKeep, nil
	case ModeSet, ModeClear:
		return m, nil
	}
	return "", errcodes.ValidationError(family + " mode must be one of keep, set, clear")
}
