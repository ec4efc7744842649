// Package validation decides which settlement lines may be posted.
package validation

import (
	"fmt"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// ReasonWithholdingPending is reported for lines whose withheld tax has no resolved document
const ReasonWithholdingPending = "withholding pending"

// Report partitions a batch's lines
type Report struct {
	Valid   []*domain.Line     `json:"-"`
	Invalid []domain.LineIssue `json:"invalid"`
}

// OK reports whether every line passed
func (r *Report) OK() bool {
	return len(r.Invalid) == 0
}

// Err returns VALIDATION_FAILED carrying every issue, or nil when all lines passed
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return domain.NewValidationFailure(r.Invalid)
}

// Engine enforces the per-line posting preconditions
type Engine struct{}

// NewEngine creates a validation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Validate checks every line. A line may carry more than one issue.
func (e *Engine) Validate(lines []*domain.Line) *Report {
	report := &Report{
		Valid:   make([]*domain.Line, 0, len(lines)),
		Invalid: []domain.LineIssue{},
	}
	for _, l := range lines {
		issues := e.CheckLine(l)
		if len(issues) == 0 {
			report.Valid = append(report.Valid, l)
			continue
		}
		report.Invalid = append(report.Invalid, issues...)
	}
	return report
}

// CheckLine returns the reasons a single line cannot be posted
func (e *Engine) CheckLine(l *domain.Line) []domain.LineIssue {
	var issues []domain.LineIssue

	if !l.IsComplete() {
		delta := l.Delta()
		issue := domain.NewLineIssue(l, fmt.Sprintf(
			"settlement total %s differs from recorded amount %s by %s",
			domain.FormatAmount(l.SettlementTotal()), domain.FormatAmount(l.RecordedAmount), domain.FormatAmount(delta)))
		issue.Delta = &delta
		issues = append(issues, issue)
	}

	if l.HasWithholding() && !l.WithholdingResolved() {
		issues = append(issues, domain.NewLineIssue(l, ReasonWithholdingPending))
	}

	return issues
}
