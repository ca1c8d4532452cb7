package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"trustledger/internal/events"
	platformmetrics "trustledger/internal/platform/metrics"
	"trustledger/internal/platform/tracing"
	reportmetrics "trustledger/internal/report/metrics"
	"trustledger/internal/report/models"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
	"trustledger/pkg/platform/tx"
	"trustledger/pkg/requestcontext"
)

const ledgerName = "report"

const maxTagLength = 256

type ReportStore interface {
	NextID(ctx context.Context) (id.ReportID, error)
	FingerprintUsed(ctx context.Context, fingerprint string) (bool, error)
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	ListByReporter(ctx context.Context, reporter id.Address) ([]id.ReportID, error)
	Execute(ctx context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error)
	CountOpen(ctx context.Context) (int, error)
}

// AccessChecker is the slice of the access controller the ledger needs.
type AccessChecker interface {
	RequireAdmin(caller id.Address) error
}

// Service is the report ledger: fingerprint-deduplicated submissions resolved
// by the administrator.
type Service struct {
	reports ReportStore
	access  AccessChecker
	emitter events.Emitter
	tx      tx.Serializer
	logger  *slog.Logger
	metrics *reportmetrics.Metrics
	ops     *platformmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOperationMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) {
		s.ops = m
	}
}

// WithSerializer replaces the default per-ledger exclusive serializer.
func WithSerializer(t tx.Serializer) Option {
	return func(s *Service) {
		s.tx = t
	}
}

func New(reports ReportStore, access AccessChecker, emitter events.Emitter, opts ...Option) *Service {
	s := &Service{
		reports: reports,
		access:  access,
		emitter: emitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewExclusive()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Submit files a report. Any caller may submit; a fingerprint can be used once.
func (s *Service) Submit(ctx context.Context, caller id.Address, fingerprint, category string) (_ *models.Report, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Submit", caller)
	defer s.observe(span, "submit", time.Now(), &err)

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	// Fingerprints are compared exactly as submitted; only blank ones are refused.
	if strings.TrimSpace(fingerprint) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	if len(fingerprint) > maxTagLength || len(category) > maxTagLength {
		return nil, dErrors.New(dErrors.CodeValidation, "fingerprint and category must be at most 256 bytes")
	}

	var report *models.Report
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		used, err := s.reports.FingerprintUsed(txCtx, fingerprint)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check fingerprint")
		}
		if used {
			return errReportExists
		}
		next, err := s.reports.NextID(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate report id")
		}
		r, err := models.NewReport(next, caller, fingerprint, category, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		entry, err := events.Encode(events.ReportSubmitted{ID: r.ID, Reporter: caller, Fingerprint: fingerprint, Category: category})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}

		if err := s.reports.Create(txCtx, r); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return errReportExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store report")
		}
		s.emitter.Append(txCtx, entry)
		report = r
		return nil
	})
	if err != nil {
		if errors.Is(err, errReportExists) && s.metrics != nil {
			s.metrics.IncrementDuplicates()
		}
		return nil, err
	}

	s.logAudit(ctx, events.KindReportSubmitted, "report_id", report.ID, "reporter", caller, "category", category)
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.refreshOpen(ctx)
	return report, nil
}

// MyReports returns the ids the caller submitted, oldest first.
func (s *Service) MyReports(ctx context.Context, caller id.Address) ([]id.ReportID, error) {
	ids, err := s.reports.ListByReporter(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return ids, nil
}

// Resolve closes a report. Only the administrator may resolve; resolving an
// already resolved report changes nothing and emits nothing.
func (s *Service) Resolve(ctx context.Context, caller id.Address, reportID id.ReportID) (_ *models.Report, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Resolve", caller)
	defer s.observe(span, "resolve", time.Now(), &err)

	if err := s.access.RequireAdmin(caller); err != nil {
		return nil, err
	}

	var (
		report      *models.Report
		transitions bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := events.Encode(events.ReportResolved{ID: reportID, Resolver: caller})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}
		now := requestcontext.Now(txCtx)
		r, err := s.reports.Execute(txCtx, reportID,
			func(r *models.Report) error {
				transitions = r.CanResolve()
				return nil
			},
			func(r *models.Report) {
				if transitions {
					r.ApplyResolution(caller, now)
				}
			},
		)
		if err != nil {
			return wrapReportErr(err)
		}
		if transitions {
			s.emitter.Append(txCtx, entry)
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitions {
		s.logAudit(ctx, events.KindReportResolved, "report_id", reportID, "resolver", caller)
		if s.metrics != nil {
			s.metrics.IncrementResolved()
		}
		s.refreshOpen(ctx)
	}
	return report, nil
}

// Report returns a single report.
func (s *Service) Report(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, wrapReportErr(err)
	}
	return r, nil
}

var errReportExists = dErrors.New(dErrors.CodeConflict, "Report already exists")

func wrapReportErr(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "report not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
}

func (s *Service) refreshOpen(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.reports.CountOpen(ctx); err == nil {
		s.metrics.SetOpen(n)
	}
}

func (s *Service) observe(span trace.Span, operation string, start time.Time, err *error) {
	tracing.End(span, *err)
	if s.ops != nil {
		s.ops.ObserveOperation(ledgerName, operation, start, *err)
	}
}

func (s *Service) logAudit(ctx context.Context, kind events.Kind, attrs ...any) {
	args := append([]any{
		"log_type", "audit",
		"event", string(kind),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, string(kind), args...)
}
