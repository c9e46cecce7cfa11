package models

import (
	"fmt"
	"strings"
)

// Status is the overall verdict on a ledger.
type Status string

const (
	StatusClean    Status = "clean"
	StatusWarnings Status = "warnings"
	StatusFailed   Status = "failed"
)

// Severity grades an issue. Any error fails the ledger.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IssueKind identifies the check that raised an issue.
type IssueKind string

const (
	IssueEmptyLedger      IssueKind = "empty_ledger"
	IssueBalanceMismatch  IssueKind = "balance_mismatch"
	IssueDateOutOfRange   IssueKind = "date_out_of_range"
	IssueDateOrder        IssueKind = "date_order"
	IssueDuplicateSuspect IssueKind = "duplicate_suspect"
	IssueFieldParseError  IssueKind = "field_parse_error"
	IssueLayoutUnknown    IssueKind = "layout_unknown"
)

// Issue is one finding of the validator or the pipeline. Index is the
// transaction index, or -1 when the issue is not tied to one.
type Issue struct {
	Kind     IssueKind  `json:"kind" xml:"kind"`
	Severity Severity   `json:"severity" xml:"severity"`
	Message  string     `json:"message" xml:"message"`
	Delta    *Money     `json:"delta,omitempty" xml:"delta,omitempty"`
	Source   *SourceRef `json:"source,omitempty" xml:"source,omitempty"`
	Index    int        `json:"index" xml:"index"`
}

func (i Issue) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", i.Severity, i.Kind, i.Message)
	if i.Delta != nil {
		fmt.Fprintf(&sb, " (delta %s)", i.Delta.StringFixed(2))
	}
	if i.Source != nil {
		fmt.Fprintf(&sb, " at %s", i.Source)
	}
	return sb.String()
}

// Report is the validation outcome of a ledger.
type Report struct {
	Status Status  `json:"status" xml:"status"`
	Issues []Issue `json:"issues" xml:"issues>issue"`
}

// Add records an issue and refreshes the status.
func (r *Report) Add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
	r.Status = StatusFor(r.Issues)
}

// Count returns the number of issues of kind.
func (r Report) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Has reports whether an issue of kind was raised.
func (r Report) Has(kind IssueKind) bool {
	return r.Count(kind) > 0
}

// Find returns the first issue of kind.
func (r Report) Find(kind IssueKind) (Issue, bool) {
	for _, i := range r.Issues {
		if i.Kind == kind {
			return i, true
		}
	}
	return Issue{}, false
}

// StatusFor derives the status from a set of issues.
func StatusFor(issues []Issue) Status {
	status := StatusClean
	for _, i := range issues {
		if i.Severity == SeverityError {
			return StatusFailed
		}
		status = StatusWarnings
	}
	return status
}
