// Package advisor talks to the external AI service that suggests book
// metadata. Everything it returns is a suggestion: callers fall back to
// their own defaults on ErrUnavailable or ErrMalformedResponse.
package advisor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/config"
)

var (
	ErrUnavailable       = errors.New("metadata advisor is unavailable")
	ErrMalformedResponse = errors.New("metadata advisor returned a malformed response")
)

type Advisor interface {
	// InferMetadata suggests metadata for a single newly imported file.
	InferMetadata(ctx context.Context, req InferRequest) (*Metadata, error)
	// Organize suggests series and group assignments for a set of books,
	// guided by a free-form instruction from the user.
	Organize(ctx context.Context, books []BookSummary, instruction string) ([]OrganizeUpdate, error)
	// SuggestGroupName proposes one group name covering every given book.
	SuggestGroupName(ctx context.Context, books []BookSummary) (string, error)
}

// New returns a Client when an API key is configured and Disabled otherwise.
func New(cfg *config.Config) Advisor {
	if cfg.AdvisorAPIKey == "" {
		return Disabled{}
	}
	return NewClient(Config{
		APIKey:            cfg.AdvisorAPIKey,
		BaseURL:           cfg.AdvisorBaseURL,
		Model:             cfg.AdvisorModel,
		Timeout:           cfg.AdvisorTimeout,
		RequestsPerMinute: cfg.AdvisorRequestsPerMinute,
	})
}

// Disabled is the advisor used when none is configured.
type Disabled struct{}

func (Disabled) InferMetadata(context.Context, InferRequest) (*Metadata, error) {
	return nil, errors.WithStack(ErrUnavailable)
}

func (Disabled) Organize(context.Context, []BookSummary, string) ([]OrganizeUpdate, error) {
	return nil, errors.WithStack(ErrUnavailable)
}

func (Disabled) SuggestGroupName(context.Context, []BookSummary) (string, error) {
	return "", errors.WithStack(ErrUnavailable)
}
