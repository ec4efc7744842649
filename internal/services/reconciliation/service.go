// Package reconciliation drives a settlement batch through its lifecycle.
package reconciliation

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/kevin07696/card-reconciliation/internal/services/posting"
	"github.com/kevin07696/card-reconciliation/internal/services/selector"
	"github.com/kevin07696/card-reconciliation/internal/services/validation"
	"github.com/kevin07696/card-reconciliation/internal/services/withholding"
	"github.com/kevin07696/card-reconciliation/internal/services/worksheet"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
	"github.com/kevin07696/card-reconciliation/pkg/timeutil"
)

// CodecFactory returns the worksheet codec for a format
type CodecFactory func(format svcports.WorksheetFormat) (ports.WorksheetCodec, error)

// Dependencies wires the service
type Dependencies struct {
	DB            ports.DBPort
	Repo          ports.BatchRepository
	Sequences     ports.SequenceGenerator
	Locker        ports.BatchLocker
	Selector      *selector.Service
	Worksheets    *worksheet.Service
	Matcher       *withholding.Matcher
	Validator     *validation.Engine
	Composer      *posting.Composer
	Codecs        CodecFactory
	Logger        ports.Logger
	BatchSequence string
}

// Service implements ports.ReconciliationService
type Service struct {
	db            ports.DBPort
	repo          ports.BatchRepository
	sequences     ports.SequenceGenerator
	locker        ports.BatchLocker
	selector      *selector.Service
	worksheets    *worksheet.Service
	matcher       *withholding.Matcher
	validator     *validation.Engine
	composer      *posting.Composer
	codecs        CodecFactory
	logger        ports.Logger
	batchSequence string
}

// NewService creates a new reconciliation service
func NewService(deps Dependencies) *Service {
	return &Service{
		db:            deps.DB,
		repo:          deps.Repo,
		sequences:     deps.Sequences,
		locker:        deps.Locker,
		selector:      deps.Selector,
		worksheets:    deps.Worksheets,
		matcher:       deps.Matcher,
		validator:     deps.Validator,
		composer:      deps.Composer,
		codecs:        deps.Codecs,
		logger:        deps.Logger,
		batchSequence: deps.BatchSequence,
	}
}

var _ svcports.ReconciliationService = (*Service)(nil)

// withBatchLock runs fn while holding the single-writer lock of the batch
func (s *Service) withBatchLock(ctx context.Context, batchID string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, batchID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// inBatchTx loads the batch inside a write transaction and hands both to fn
func (s *Service) inBatchTx(ctx context.Context, batchID string, fn func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error) error {
	return s.withBatchLock(ctx, batchID, func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			batch, err := s.repo.GetBatch(ctx, tx, batchID)
			if err != nil {
				return err
			}
			return fn(ctx, tx, batch)
		})
	})
}

// CreateBatch opens a draft batch
func (s *Service) CreateBatch(ctx context.Context, req *svcports.CreateBatchRequest) (*domain.Batch, error) {
	now := timeutil.Now()
	batch := &domain.Batch{
		ID:                   uuid.NewString(),
		CutoffDate:           timeutil.StartOfDay(req.CutoffDate),
		SourceJournalID:      req.SourceJournalID,
		DestinationJournalID: req.DestinationJournalID,
		ResponsiblePartyID:   req.ResponsiblePartyID,
		ReferencePartnerID:   req.ReferencePartnerID,
		CardTypes:            normalizeCardTypes(req.CardTypes),
		State:                domain.BatchStateDraft,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		name, err := s.sequences.Next(ctx, tx, s.batchSequence)
		if err != nil {
			return err
		}
		batch.Name = name
		if err := s.repo.CreateBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reconciliation batch created",
		ports.String("batch_id", batch.ID),
		ports.String("name", batch.Name),
		ports.String("cutoff", batch.CutoffDate.Format(timeutil.DateLayout)))
	return batch, nil
}

func normalizeCardTypes(types []domain.CardType) []domain.CardType {
	out := make([]domain.CardType, 0, len(types))
	seenIDs := make(map[string]bool, len(types))
	seenCodes := make(map[string]bool, len(types))
	for _, ct := range types {
		ct.ID = strings.TrimSpace(ct.ID)
		ct.Code = strings.TrimSpace(ct.Code)
		code := strings.ToLower(ct.Code)
		if ct.ID == "" || ct.Code == "" || seenIDs[ct.ID] || seenCodes[code] {
			continue
		}
		seenIDs[ct.ID] = true
		seenCodes[code] = true
		out = append(out, ct)
	}
	return out
}

// GetBatch returns the batch and its lines
func (s *Service) GetBatch(ctx context.Context, batchID string) (*svcports.BatchView, error) {
	batch, err := s.repo.GetBatch(ctx, nil, batchID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch lines: %w", err)
	}
	if lines == nil {
		lines = []*domain.Line{}
	}
	return &svcports.BatchView{Batch: batch, Lines: lines}, nil
}

// DeleteBatch removes a batch that is not done
func (s *Service) DeleteBatch(ctx context.Context, batchID string) error {
	err := s.inBatchTx(ctx, batchID, func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
		if err := batch.EnsureMutable(); err != nil {
			return err
		}
		return s.repo.DeleteBatch(ctx, tx, batchID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("reconciliation batch deleted", ports.String("batch_id", batchID))
	return nil
}

// PopulateLines runs the candidate payment selector
func (s *Service) PopulateLines(ctx context.Context, batchID string) (*svcports.SelectionResult, error) {
	var result *svcports.SelectionResult
	err := s.inBatchTx(ctx, batchID, func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
		var err error
		result, err = s.selector.Populate(ctx, tx, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExportWorksheet writes the batch worksheet
func (s *Service) ExportWorksheet(ctx context.Context, batchID string, format svcports.WorksheetFormat, w io.Writer) error {
	codec, err := s.codecs(format)
	if err != nil {
		return err
	}
	batch, err := s.repo.GetBatch(ctx, nil, batchID)
	if err != nil {
		return err
	}
	return s.worksheets.Export(ctx, batch, codec, w)
}

// ImportWorksheet applies a settlement worksheet to the batch lines
func (s *Service) ImportWorksheet(ctx context.Context, req *svcports.ImportRequest) (*svcports.ImportResult, error) {
	codec, err := s.codecs(req.Format)
	if err != nil {
		return nil, err
	}

	var result *svcports.ImportResult
	err = s.withBatchLock(ctx, req.BatchID, func() error {
		batch, err := s.repo.GetBatch(ctx, nil, req.BatchID)
		if err != nil {
			return err
		}
		result, err = s.worksheets.Import(ctx, batch, codec, req.Data, worksheet.ImportOptions{
			Format:   string(req.Format),
			StartRow: req.StartRow,
			MaxRows:  req.MaxRows,
		})
		return err
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// ResolveWithholdings runs the withholding matcher
func (s *Service) ResolveWithholdings(ctx context.Context, batchID string) (*svcports.ResolutionResult, error) {
	var result *svcports.ResolutionResult
	err := s.inBatchTx(ctx, batchID, func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
		var err error
		result, err = s.matcher.Resolve(ctx, tx, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate reports every invalid line of the batch
func (s *Service) Validate(ctx context.Context, batchID string) error {
	if _, err := s.repo.GetBatch(ctx, nil, batchID); err != nil {
		return err
	}
	lines, err := s.repo.ListLines(ctx, nil, batchID)
	if err != nil {
		return fmt.Errorf("list batch lines: %w", err)
	}
	report := s.validator.Validate(lines)
	if !report.OK() {
		observability.RecordValidationFailures(len(report.Invalid))
	}
	return report.Err()
}

// Start moves a draft batch to in_process
func (s *Service) Start(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, domain.BatchStateInProcess)
}

// Reset re-opens a done batch. Posted entries stay posted.
func (s *Service) Reset(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, domain.BatchStateDraft)
}

func (s *Service) transition(ctx context.Context, batchID string, next domain.BatchState) (*domain.Batch, error) {
	var updated *domain.Batch
	var from domain.BatchState
	err := s.inBatchTx(ctx, batchID, func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
		from = batch.State
		if err := batch.TransitionTo(next); err != nil {
			return err
		}
		if err := s.repo.UpdateBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordBatchTransition(string(from), string(next))
	s.logger.Info("reconciliation batch transitioned",
		ports.String("batch_id", batchID),
		ports.String("from", string(from)),
		ports.String("to", string(next)),
		ports.Int("revision", updated.Revision))
	return updated, nil
}

// Complete validates every line, posts one entry per line and closes the batch,
// all in one transaction. Nothing is posted unless every line is valid.
func (s *Service) Complete(ctx context.Context, batchID string) (*svcports.CompletionResult, error) {
	result := &svcports.CompletionResult{}
	err := s.inBatchTx(ctx, batchID, func(ctx context.Context, tx pgx.Tx, batch *domain.Batch) error {
		if !batch.CanTransitionTo(domain.BatchStateDone) {
			return batch.TransitionTo(domain.BatchStateDone)
		}

		lines, err := s.repo.ListLines(ctx, tx, batchID)
		if err != nil {
			return fmt.Errorf("list batch lines: %w", err)
		}

		report := s.validator.Validate(lines)
		if !report.OK() {
			observability.RecordValidationFailures(len(report.Invalid))
			return report.Err()
		}

		refs, err := s.composer.Post(ctx, tx, batch, report.Valid)
		if err != nil {
			return err
		}

		if err := batch.TransitionTo(domain.BatchStateDone); err != nil {
			return err
		}
		if err := s.repo.UpdateBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		result.Batch = batch
		result.EntryRefs = refs
		return nil
	})
	if err != nil {
		s.logger.Warn("batch completion refused",
			ports.String("batch_id", batchID),
			ports.String("code", string(domain.GetErrorCode(err))),
			ports.Err(err))
		return nil, err
	}

	observability.RecordBatchTransition(string(domain.BatchStateInProcess), string(domain.BatchStateDone))
	s.logger.Info("reconciliation batch completed",
		ports.String("batch_id", batchID),
		ports.Int("entries", len(result.EntryRefs)))
	return result, nil
}
