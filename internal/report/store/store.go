package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"trustledger/internal/report/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// InMemory keeps reports keyed by id with indexes on fingerprint and reporter.
type InMemory struct {
	mu           sync.RWMutex
	reports      map[id.ReportID]*models.Report
	fingerprints map[string]id.ReportID
	byReporter   map[id.Address][]id.ReportID
	lastID       id.ReportID
}

func NewInMemory() *InMemory {
	return &InMemory{
		reports:      make(map[id.ReportID]*models.Report),
		fingerprints: make(map[string]id.ReportID),
		byReporter:   make(map[id.Address][]id.ReportID),
	}
}

// NextID returns the id the next Create call must use. It does not reserve it.
func (s *InMemory) NextID(_ context.Context) (id.ReportID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID + 1, nil
}

func (s *InMemory) FingerprintUsed(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fingerprints[fingerprint]
	return ok, nil
}

// Create stores the report under the next id and appends it to the reporter's list.
func (s *InMemory) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fingerprints[r.Fingerprint]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if r.ID != s.lastID+1 {
		return fmt.Errorf("report id %d out of order, next is %d: %w", r.ID, s.lastID+1, sentinel.ErrInvalidState)
	}
	s.lastID = r.ID
	stored := *r
	s.reports[r.ID] = &stored
	s.fingerprints[r.Fingerprint] = r.ID
	s.byReporter[r.Reporter] = append(s.byReporter[r.Reporter], r.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *r
	return &out, nil
}

// ListByReporter returns the reporter's ids in submission order. Never nil.
func (s *InMemory) ListByReporter(_ context.Context, reporter id.Address) ([]id.ReportID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := slices.Clone(s.byReporter[reporter])
	if ids == nil {
		ids = []id.ReportID{}
	}
	return ids, nil
}

// Execute runs validate then mutate on the stored report under the write lock.
func (s *InMemory) Execute(_ context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	out := *r
	return &out, nil
}

// CountOpen returns the number of unresolved reports.
func (s *InMemory) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := 0
	for _, r := range s.reports {
		if !r.Resolved {
			open++
		}
	}
	return open, nil
}
