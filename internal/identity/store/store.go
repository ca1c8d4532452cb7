package store

import (
	"context"
	"sync"

	"trustledger/internal/identity/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

// ErrExternalIDTaken is returned by Create when another user already holds the
// external identifier. It wraps sentinel.ErrAlreadyUsed.
var ErrExternalIDTaken = &taken{what: "external id"}

// ErrOwnerTaken is returned by Create when the owner already has a record.
var ErrOwnerTaken = &taken{what: "owner"}

type taken struct{ what string }

func (t *taken) Error() string { return t.what + " already registered" }
func (t *taken) Unwrap() error { return sentinel.ErrAlreadyUsed }

// InMemory keeps users keyed by owner with a secondary index on external id.
type InMemory struct {
	mu         sync.RWMutex
	users      map[id.Address]*models.User
	externalID map[string]id.Address
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:      make(map[id.Address]*models.User),
		externalID: make(map[string]id.Address),
	}
}

// Create inserts a user when neither the owner nor the external id is in use.
func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.externalID[user.ExternalID]; ok {
		return ErrExternalIDTaken
	}
	if _, ok := s.users[user.Owner]; ok {
		return ErrOwnerTaken
	}
	stored := *user
	s.users[user.Owner] = &stored
	s.externalID[user.ExternalID] = user.Owner
	return nil
}

func (s *InMemory) FindByOwner(_ context.Context, owner id.Address) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemory) ExternalIDInUse(_ context.Context, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.externalID[externalID]
	return ok, nil
}

// Execute runs validate then mutate on the stored user while holding the write
// lock. mutate is skipped when validate fails. Returns a copy of the result.
func (s *InMemory) Execute(_ context.Context, owner id.Address, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(u); err != nil {
		return nil, err
	}
	mutate(u)
	out := *u
	return &out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
