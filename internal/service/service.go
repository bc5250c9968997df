package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/lock"
	"github.com/Veysel440/go-ledger/internal/telemetry"
)

// Service is the ledger: the append path, chain verification, the timeline
// projection and rollback, all sharing one store and one per-case lock domain.
type Service struct {
	store   Store
	locks   Locker
	log     *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer

	now            func() time.Time
	newID          func() string
	appendAttempts int
	auditRollbacks bool

	// verify backs BuildTimeline; it is VerifyChain outside tests.
	verify func(ctx context.Context, caseID string) (VerifyResult, error)
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// WithAppendAttempts bounds how often an append re-reads the tip after a
// store conflict.
func WithAppendAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.appendAttempts = n
		}
	}
}

// WithRollbackAudit makes RollbackTo append a control event describing the
// rollback.
func WithRollbackAudit(on bool) Option { return func(s *Service) { s.auditRollbacks = on } }

func New(store Store, locks Locker, opts ...Option) *Service {
	s := &Service{
		store:          store,
		locks:          locks,
		log:            slog.Default(),
		tracer:         telemetry.Tracer(),
		now:            time.Now,
		newID:          uuid.NewString,
		appendAttempts: 3,
	}
	for _, o := range opts {
		o(s)
	}
	if s.locks == nil {
		s.locks = lock.NewLocal()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.verify = s.VerifyChain
	return s
}

func (s *Service) Get(ctx context.Context, id string) (core.AuditEvent, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]core.AuditEvent, error) {
	f.Normalize()
	return s.store.List(ctx, f)
}

func (s *Service) span(ctx context.Context, name, caseID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("ledger.case_id", caseID)))
}
