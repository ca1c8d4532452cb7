package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"trustledger/internal/access"
	"trustledger/internal/events"
	"trustledger/internal/report"
	reportmetrics "trustledger/internal/report/metrics"
	"trustledger/internal/report/store"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/requestcontext"
)

const (
	admin id.Address = "0xadmin"
	user1 id.Address = "0xuser1"
	user2 id.Address = "0xuser2"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	log     *events.Log
	metrics *reportmetrics.Metrics
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	s.log = events.NewLog()
	ctrl, err := access.New(access.Roles{Administrator: admin})
	s.Require().NoError(err)
	s.metrics = reportmetrics.New(prometheus.NewRegistry())
	s.svc = New(store.NewInMemory(), ctrl, s.log, WithMetrics(s.metrics))
}

func (s *ServiceSuite) TestSubmit() {
	fingerprint := report.Keccak256Hex("Duplicate report")
	category := report.Keccak256Hex("Spam")

	first, err := s.svc.Submit(s.ctx, user1, fingerprint, category)
	s.Require().NoError(err)
	s.Equal(id.ReportID(1), first.ID)
	s.False(first.Resolved)

	recs := s.log.Since(0, 0)
	s.Require().Len(recs, 1)
	s.JSONEq(fmt.Sprintf(`{"id":1,"reporter":"0xuser1","fingerprint":%q,"category":%q}`, fingerprint, category), string(recs[0].Payload))

	s.Run("same fingerprint from the same reporter is a duplicate", func() {
		_, err := s.svc.Submit(s.ctx, user1, fingerprint, category)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("Report already exists", dErrors.MessageOf(err))
	})

	s.Run("same fingerprint from another reporter and category is a duplicate", func() {
		_, err := s.svc.Submit(s.ctx, user2, fingerprint, report.Keccak256Hex("Fraud"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("my reports excludes rejected duplicates", func() {
		ids, err := s.svc.MyReports(s.ctx, user1)
		s.Require().NoError(err)
		s.Equal([]id.ReportID{1}, ids)

		ids, err = s.svc.MyReports(s.ctx, user2)
		s.Require().NoError(err)
		s.Equal([]id.ReportID{}, ids)
	})

	s.Run("empty fingerprint is a validation error", func() {
		_, err := s.svc.Submit(s.ctx, user1, " ", category)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Len(s.log.Since(0, 0), 1)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Duplicates))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Open))
}

func (s *ServiceSuite) TestSubmitKeepsValuesAsSubmitted() {
	fingerprint := report.Keccak256Hex("Padded report")

	first, err := s.svc.Submit(s.ctx, user1, fingerprint, "")
	s.Require().NoError(err)
	s.Empty(first.Category)

	padded, err := s.svc.Submit(s.ctx, user2, fingerprint+" ", " spam ")
	s.Require().NoError(err)
	s.Equal(fingerprint+" ", padded.Fingerprint)
	s.Equal(" spam ", padded.Category)

	recs := s.log.Since(0, 0)
	s.Require().Len(recs, 2)
	s.JSONEq(fmt.Sprintf(`{"id":1,"reporter":"0xuser1","fingerprint":%q,"category":""}`, fingerprint), string(recs[0].Payload))
	s.JSONEq(fmt.Sprintf(`{"id":2,"reporter":"0xuser2","fingerprint":%q,"category":" spam "}`, fingerprint+" "), string(recs[1].Payload))
}

func (s *ServiceSuite) TestMyReportsOrder() {
	for i := 0; i < 3; i++ {
		_, err := s.svc.Submit(s.ctx, user1, report.Keccak256Hex(fmt.Sprintf("report %d", i)), "")
		s.Require().NoError(err)
		_, err = s.svc.Submit(s.ctx, user2, report.Keccak256Hex(fmt.Sprintf("other %d", i)), "")
		s.Require().NoError(err)
	}

	ids, err := s.svc.MyReports(s.ctx, user1)
	s.Require().NoError(err)
	s.Equal([]id.ReportID{1, 3, 5}, ids)
}

func (s *ServiceSuite) TestResolve() {
	r, err := s.svc.Submit(s.ctx, user1, report.Keccak256Hex("Test report"), report.Keccak256Hex("Spam"))
	s.Require().NoError(err)

	s.Run("non-admin cannot resolve", func() {
		_, err := s.svc.Resolve(s.ctx, user1, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("Not an admin", dErrors.MessageOf(err))

		got, err := s.svc.Report(s.ctx, r.ID)
		s.Require().NoError(err)
		s.False(got.Resolved)
		s.Empty(got.Resolver)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.svc.Resolve(s.ctx, admin, 99)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("admin resolves", func() {
		got, err := s.svc.Resolve(s.ctx, admin, r.ID)
		s.Require().NoError(err)
		s.True(got.Resolved)
		s.Equal(admin, got.Resolver)

		recs := s.log.Since(0, 0)
		s.Require().Len(recs, 2)
		s.Equal(events.KindReportResolved, recs[1].Kind)
		s.JSONEq(`{"id":1,"resolver":"0xadmin"}`, string(recs[1].Payload))
	})

	s.Run("resolving again is a silent no-op", func() {
		got, err := s.svc.Resolve(s.ctx, admin, r.ID)
		s.Require().NoError(err)
		s.True(got.Resolved)
		s.Len(s.log.Since(0, 0), 2)
	})

	s.Run("resolved fingerprint stays taken", func() {
		_, err := s.svc.Submit(s.ctx, user2, r.Fingerprint, r.Category)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolved))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.Open))
}

func (s *ServiceSuite) TestConcurrentDuplicateSubmissions() {
	const callers = 30
	fingerprint := report.Keccak256Hex("race")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []id.Address
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(caller id.Address) {
			defer wg.Done()
			if _, err := s.svc.Submit(s.ctx, caller, fingerprint, ""); err == nil {
				mu.Lock()
				accepted = append(accepted, caller)
				mu.Unlock()
			}
		}(id.Address(fmt.Sprintf("0xcaller%d", i)))
	}
	wg.Wait()

	s.Require().Len(accepted, 1)
	ids, err := s.svc.MyReports(s.ctx, accepted[0])
	s.Require().NoError(err)
	s.Equal([]id.ReportID{1}, ids)
	s.Len(s.log.Since(0, 0), 1)
}
