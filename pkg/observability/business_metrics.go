package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch lifecycle metrics
	batchTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_batch_transitions_total",
		Help: "Total reconciliation batch state transitions",
	}, []string{
		"from", // draft, in_process, done
		"to",
	})

	// Candidate selection metrics
	paymentsSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_payments_selected_total",
		Help: "Payments added to a batch as new settlement lines",
	})

	paymentsExcludedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_payments_excluded_total",
		Help: "Payments left out of selection",
	}, []string{
		"reason", // claimed, conflict
	})

	// Worksheet import metrics
	worksheetRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_worksheet_rows_total",
		Help: "Worksheet rows processed by import",
	}, []string{
		"format", // xlsx, csv
		"result", // applied, unknown_line, invalid
	})

	// Withholding matcher metrics
	withholdingResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_withholding_resolutions_total",
		Help: "Withholding sequence resolutions by outcome",
	}, []string{
		"outcome", // done, pending, ambiguous
	})

	// Validation metrics
	validationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_validation_failed_lines_total",
		Help: "Lines rejected by validation",
	})

	// Posting metrics
	entriesPostedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_journal_entries_posted_total",
		Help: "Journal entries posted from reconciled lines",
	})

	postingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "reconciliation_posting_duration_seconds",
		Help: "Time to post all entries of a batch",
		// Buckets: 50ms to 60s (a few lines up to several thousand)
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{
		"status", // success, failed
	})
)

// RecordBatchTransition records a batch state change
func RecordBatchTransition(from, to string) {
	batchTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSelection records the outcome of one candidate selection run
func RecordSelection(added, claimed, conflicts int) {
	paymentsSelectedTotal.Add(float64(added))
	paymentsExcludedTotal.WithLabelValues("claimed").Add(float64(claimed))
	paymentsExcludedTotal.WithLabelValues("conflict").Add(float64(conflicts))
}

// RecordWorksheetRows records imported worksheet rows by result
func RecordWorksheetRows(format, result string, n int) {
	if n == 0 {
		return
	}
	worksheetRowsTotal.WithLabelValues(format, result).Add(float64(n))
}

// RecordWithholdingResolution records matcher outcomes
func RecordWithholdingResolution(outcome string, n int) {
	if n == 0 {
		return
	}
	withholdingResolutionsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordValidationFailures records lines rejected by validation
func RecordValidationFailures(n int) {
	validationFailuresTotal.Add(float64(n))
}

// RecordPosting records one batch posting attempt
func RecordPosting(status string, entries int, duration float64) {
	entriesPostedTotal.Add(float64(entries))
	postingDuration.WithLabelValues(status).Observe(duration)
}
