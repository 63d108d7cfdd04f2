package bulk

import (
	"fmt"
)

// Failure is a record that couldn't be written.
type Failure struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

func newFailure(id string, err error) Failure {
	return Failure{RecordID: id, Message: err.Error(), Err: err}
}

// Result reports what a batch edit actually did. Writes are not
// transactional: records written before a failure stay written.
type Result struct {
	Requested  int       `json:"requested"`
	Updated    int       `json:"updated"`
	Failed     []Failure `json:"failed"`
	Propagated int       `json:"propagated"`
}

// Err returns a *PartialFailureError when fewer records were updated than
// requested.
func (r *Result) Err() error {
	if r.Updated < r.Requested {
		return &PartialFailureError{Requested: r.Requested, Updated: r.Updated}
	}
	return nil
}

// PartialFailureError reports a batch where only some writes landed.
type PartialFailureError struct {
	Requested int
	Updated   int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("updated %d of %d records", e.Updated, e.Requested)
}

// EditResult is the outcome of editing a single record.
type EditResult struct {
	Propagated int `json:"propagated"`
}

// OrganizeResult reports an auto-organize pass. AdvisorFailed means the
// advisor gave no usable suggestion, which is not an error.
type OrganizeResult struct {
	Suggested     int       `json:"suggested"`
	Updated       int       `json:"updated"`
	Ignored       int       `json:"ignored"`
	Failed        []Failure `json:"failed"`
	AdvisorFailed bool      `json:"advisor_failed"`
}

// Err returns a *PartialFailureError when some applicable suggestions
// couldn't be written.
func (r *OrganizeResult) Err() error {
	requested := r.Suggested - r.Ignored
	if r.Updated < requested {
		return &PartialFailureError{Requested: requested, Updated: r.Updated}
	}
	return nil
}
