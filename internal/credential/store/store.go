package store

import (
	"context"
	"fmt"
	"sync"

	"trustledger/internal/credential/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// InMemory holds issued and pending credentials in one id space. Ids are
// allocated in order starting at 1 and are never reused.
type InMemory struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
	pending     map[id.CredentialID]*models.PendingCredential
	lastID      id.CredentialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		credentials: make(map[id.CredentialID]*models.Credential),
		pending:     make(map[id.CredentialID]*models.PendingCredential),
	}
}

// NextID returns the id the next Create call must use. It does not reserve it.
func (s *InMemory) NextID(_ context.Context) (id.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID + 1, nil
}

// CreateCredential stores a new issued credential under the next id.
func (s *InMemory) CreateCredential(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.claim(c.ID); err != nil {
		return err
	}
	stored := *c
	s.credentials[c.ID] = &stored
	return nil
}

// CreatePending stores a new pending credential under the next id.
func (s *InMemory) CreatePending(_ context.Context, p *models.PendingCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.claim(p.ID); err != nil {
		return err
	}
	s.pending[p.ID] = p.Clone()
	return nil
}

func (s *InMemory) claim(credID id.CredentialID) error {
	if credID != s.lastID+1 {
		return fmt.Errorf("credential id %d out of order, next is %d: %w", credID, s.lastID+1, sentinel.ErrInvalidState)
	}
	s.lastID = credID
	return nil
}

func (s *InMemory) FindCredential(_ context.Context, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *InMemory) FindPending(_ context.Context, credID id.CredentialID) (*models.PendingCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pending[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// UpdatePending replaces a pending credential that is still open.
func (s *InMemory) UpdatePending(_ context.Context, p *models.PendingCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.pending[p.ID] = p.Clone()
	return nil
}

// Finalize removes the pending credential and stores c under the same id.
func (s *InMemory) Finalize(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.credentials[c.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	delete(s.pending, c.ID)
	stored := *c
	s.credentials[c.ID] = &stored
	return nil
}

// ExecuteCredential runs validate then mutate on the stored credential under the
// write lock. mutate is skipped when validate fails.
func (s *InMemory) ExecuteCredential(_ context.Context, credID id.CredentialID, validate func(*models.Credential) error, mutate func(*models.Credential)) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)
	out := *c
	return &out, nil
}

// CountPending returns the number of credentials still collecting approvals.
func (s *InMemory) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending), nil
}
