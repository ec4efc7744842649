package withholding_test

import (
	"context"
	"testing"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/services/withholding"
	"github.com/kevin07696/card-reconciliation/internal/testutil/fixtures"
	"github.com/kevin07696/card-reconciliation/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, lines ...*domain.Line) (*memstore.Store, *withholding.Matcher, *domain.Batch) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	batch := fixtures.NewBatch().WithID("b-1").Build()
	require.NoError(t, store.CreateBatch(ctx, nil, batch))
	for _, l := range lines {
		_, err := store.InsertLine(ctx, nil, l)
		require.NoError(t, err)
	}
	return store, withholding.NewMatcher(store, store, fixtures.NopLogger{}, fixtures.WithholdingDocumentType), batch
}

func lineByID(t *testing.T, store *memstore.Store, id string) *domain.Line {
	t.Helper()
	lines, err := store.ListLines(context.Background(), nil, "b-1")
	require.NoError(t, err)
	for _, l := range lines {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("line %s not found", id)
	return nil
}

func TestResolve_SingleMatchLinksDocument(t *testing.T) {
	store, matcher, batch := setup(t,
		fixtures.NewLine("b-1").WithID("l-1").WithSequence(" 001-045 ").Build(),
	)
	doc := fixtures.NewWithholdingDocument("001-045", "5.00", "10.00")
	store.AddWithholdingDocuments(doc)

	result, err := matcher.Resolve(context.Background(), nil, batch)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	l := lineByID(t, store, "l-1")
	assert.Equal(t, domain.WithholdingStateDone, l.WithholdingState)
	require.NotNil(t, l.WithholdingDocumentID)
	assert.Equal(t, doc.ID, *l.WithholdingDocumentID)
}

func TestResolve_NoMatchMarksPending(t *testing.T) {
	store, matcher, batch := setup(t,
		fixtures.NewLine("b-1").WithID("l-1").WithSequence("045").ResolvedTo("stale-doc").Build(),
	)
	// wrong partner, unposted and wrong type never match
	other := fixtures.NewWithholdingDocument("045", "10", "0")
	other.PartnerID = "partner-someone-else"
	unposted := fixtures.NewWithholdingDocument("045", "10", "0")
	unposted.Posted = false
	wrongType := fixtures.NewWithholdingDocument("045", "10", "0")
	wrongType.DocumentType = "vendor_bill"
	store.AddWithholdingDocuments(other, unposted, wrongType)

	result, err := matcher.Resolve(context.Background(), nil, batch)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Pending)
	l := lineByID(t, store, "l-1")
	assert.Equal(t, domain.WithholdingStatePending, l.WithholdingState)
	assert.Nil(t, l.WithholdingDocumentID)
}

func TestResolve_LinesWithoutSequenceAreUntouched(t *testing.T) {
	store, matcher, batch := setup(t,
		fixtures.NewLine("b-1").WithID("l-1").Build(),
	)

	result, err := matcher.Resolve(context.Background(), nil, batch)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Untouched)
	assert.Equal(t, domain.WithholdingStateUnset, lineByID(t, store, "l-1").WithholdingState)
}

func TestResolve_AmbiguousMatchIsAnErrorAndWritesNothing(t *testing.T) {
	store, matcher, batch := setup(t,
		fixtures.NewLine("b-1").WithID("l-1").WithPosition(1).WithSequence("046").Build(),
		fixtures.NewLine("b-1").WithID("l-2").WithPosition(2).WithVoucher("V-AMB").WithSequence("047").Build(),
	)
	store.AddWithholdingDocuments(
		fixtures.NewWithholdingDocument("046", "1", "0"),
		fixtures.NewWithholdingDocument("047", "1", "0"),
		fixtures.NewWithholdingDocument("047", "2", "0"),
	)

	_, err := matcher.Resolve(context.Background(), nil, batch)

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAmbiguousWithholding))
	ambiguous := domain.AmbiguousMatchesOf(err)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "l-2", ambiguous[0].LineID)
	assert.Equal(t, "V-AMB", ambiguous[0].VoucherNumber)
	assert.Len(t, ambiguous[0].DocumentIDs, 2)

	assert.Equal(t, domain.WithholdingStateUnset, lineByID(t, store, "l-1").WithholdingState,
		"the unambiguous line is not written either")
}
