package advisor

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// BookSummary is what the advisor is told about a book. File contents are
// never sent.
type BookSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	FileName      string `json:"fileName"`
	CurrentSeries string `json:"currentSeries,omitempty"`
	CurrentGroup  string `json:"currentGroup,omitempty"`
}

// InferRequest describes a file being imported. Embedded holds whatever
// metadata could be read out of the file itself.
type InferRequest struct {
	FileName string    `json:"fileName"`
	FileType string    `json:"fileType"`
	FileSize int64     `json:"fileSize"`
	Embedded *Metadata `json:"embedded,omitempty"`
}

type Metadata struct {
	Title       string  `json:"title" validate:"required,max=500"`
	Author      string  `json:"author" validate:"required,max=500"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	Genre       *string `json:"genre,omitempty" validate:"omitempty,max=100"`
	ReleaseDate *string `json:"releaseDate,omitempty" validate:"omitempty,max=50"`
	Language    *string `json:"language,omitempty" validate:"omitempty,max=35"`
	SeriesTitle *string `json:"seriesTitle,omitempty" validate:"omitempty,max=500"`
	SeriesIndex *string `json:"seriesIndex,omitempty" validate:"omitempty,max=20"`
}

// OrganizeUpdate is a suggestion for one record. Only non-nil fields are
// applied.
type OrganizeUpdate struct {
	ID          string  `json:"id" validate:"required,max=100"`
	SeriesTitle *string `json:"seriesTitle,omitempty" validate:"omitempty,max=500"`
	SeriesIndex *string `json:"seriesIndex,omitempty" validate:"omitempty,max=20"`
	Group       *string `json:"group,omitempty" validate:"omitempty,max=200"`
}

// Empty reports whether the update suggests nothing.
func (u OrganizeUpdate) Empty() bool {
	return u.SeriesTitle == nil && u.SeriesIndex == nil && u.Group == nil
}

type Kind string

const (
	KindMetadata  Kind = "metadata"
	KindOrganize  Kind = "organize"
	KindGroupName Kind = "group_name"
)

// Response is a parsed advisor reply. Exactly one of Metadata, Updates or
// GroupName is populated, depending on Kind.
type Response struct {
	Kind      Kind
	Metadata  *Metadata
	Updates   []OrganizeUpdate
	GroupName string
}

type organizePayload struct {
	Updates []OrganizeUpdate `json:"updates"`
}

type groupNamePayload struct {
	GroupName string `json:"groupName" validate:"required,max=100"`
}

var validate = validator.New()

// ParseResponse decodes raw model output into the shape expected for kind.
// Unknown fields are ignored. Invalid organize entries are dropped
// individually, anything else invalid fails the whole response with
// ErrMalformedResponse.
func ParseResponse(kind Kind, raw string) (*Response, error) {
	switch kind {
	case KindMetadata:
		md := &Metadata{}
		if err := decodeJSON(raw, md); err != nil {
			return nil, errors.Wrap(ErrMalformedResponse, err.Error())
		}
		trimMetadata(md)
		if err := validate.Struct(md); err != nil {
			return nil, errors.Wrap(ErrMalformedResponse, err.Error())
		}
		return &Response{Kind: kind, Metadata: md}, nil

	case KindOrganize:
		payload := organizePayload{}
		if err := decodeJSON(raw, &payload); err != nil {
			// Some models reply with the bare array.
			if aerr := decodeJSON(raw, &payload.Updates); aerr != nil {
				return nil, errors.Wrap(ErrMalformedResponse, err.Error())
			}
		}
		updates := make([]OrganizeUpdate, 0, len(payload.Updates))
		for _, u := range payload.Updates {
			u.ID = strings.TrimSpace(u.ID)
			u.SeriesTitle = trimmed(u.SeriesTitle)
			u.SeriesIndex = trimmed(u.SeriesIndex)
			u.Group = trimmed(u.Group)
			if validate.Struct(u) != nil || u.Empty() {
				continue
			}
			updates = append(updates, u)
		}
		return &Response{Kind: kind, Updates: updates}, nil

	case KindGroupName:
		payload := groupNamePayload{}
		if err := decodeJSON(raw, &payload); err != nil {
			return nil, errors.Wrap(ErrMalformedResponse, err.Error())
		}
		payload.GroupName = strings.TrimSpace(payload.GroupName)
		if err := validate.Struct(payload); err != nil {
			return nil, errors.Wrap(ErrMalformedResponse, err.Error())
		}
		return &Response{Kind: kind, GroupName: payload.GroupName}, nil
	}

	return nil, errors.Errorf("unknown advisor response kind %q", kind)
}

func trimMetadata(md *Metadata) {
	md.Title = strings.TrimSpace(md.Title)
	md.Author = strings.TrimSpace(md.Author)
	md.Description = trimmed(md.Description)
	md.Genre = trimmed(md.Genre)
	md.ReleaseDate = trimmed(md.ReleaseDate)
	md.Language = trimmed(md.Language)
	md.SeriesTitle = trimmed(md.SeriesTitle)
	md.SeriesIndex = trimmed(md.SeriesIndex)
}

// trimmed treats blank strings as absent.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// decodeJSON decodes model output, tolerating code fences and prose around
// the JSON document.
func decodeJSON(content string, target interface{}) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(content), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSON(content)
	if sanitized == "" || sanitized == content {
		return errors.Wrapf(directErr, "payload snippet: %s", snippet(content))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return errors.Wrapf(err, "sanitized payload snippet: %s", snippet(sanitized))
	}
	return nil
}

func sanitizeJSON(content string) string {
	s := strings.TrimSpace(stripCodeFence(content))
	if s == "" {
		return ""
	}
	if s[0] == '{' || s[0] == '[' {
		return s
	}
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return strings.TrimSpace(s[start : end+1])
		}
	}
	if start := strings.Index(s, "["); start >= 0 {
		if end := strings.LastIndex(s, "]"); end > start {
			return strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimLeft(s[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
