// Package access holds the role assignment shared by every ledger: one administrator
// fixed at construction and an issuer set that only grows.
//
// All admission checks go through a Controller so role logic is never re-derived ad hoc
// inside a ledger.
package access

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/requestcontext"
)

// Literal reasons surfaced to callers.
const (
	ReasonNotAdmin  = "Not an admin"
	ReasonNotIssuer = "Not an issuer"
)

// Roles is the construction-time role configuration.
type Roles struct {
	Administrator id.Address
	Issuers       []id.Address
}

// Controller answers role questions. It is safe for concurrent use.
type Controller struct {
	admin  id.Address
	logger *slog.Logger

	mu      sync.RWMutex
	issuers map[id.Address]struct{}
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New validates roles and returns a Controller.
func New(roles Roles, opts ...Option) (*Controller, error) {
	if roles.Administrator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "administrator is required")
	}
	c := &Controller{
		admin:   roles.Administrator,
		issuers: make(map[id.Address]struct{}, len(roles.Issuers)),
	}
	for _, issuer := range roles.Issuers {
		if issuer.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer address cannot be empty")
		}
		c.issuers[issuer] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Administrator returns the fixed administrator address.
func (c *Controller) Administrator() id.Address {
	return c.admin
}

func (c *Controller) IsAdmin(caller id.Address) bool {
	return !caller.IsZero() && caller == c.admin
}

// IsIssuer reports issuer membership. The administrator is implicitly an issuer.
func (c *Controller) IsIssuer(caller id.Address) bool {
	if c.IsAdmin(caller) {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.issuers[caller]
	return ok
}

func (c *Controller) RequireAdmin(caller id.Address) error {
	if !c.IsAdmin(caller) {
		return dErrors.New(dErrors.CodeForbidden, ReasonNotAdmin)
	}
	return nil
}

func (c *Controller) RequireIssuer(caller id.Address) error {
	if !c.IsIssuer(caller) {
		return dErrors.New(dErrors.CodeForbidden, ReasonNotIssuer)
	}
	return nil
}

// AddIssuer grants the issuer role. Only the administrator may call it; adding an
// existing issuer is a no-op.
func (c *Controller) AddIssuer(ctx context.Context, caller, issuer id.Address) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if issuer.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "issuer address is required")
	}

	c.mu.Lock()
	_, existed := c.issuers[issuer]
	c.issuers[issuer] = struct{}{}
	c.mu.Unlock()

	if !existed && c.logger != nil {
		c.logger.InfoContext(ctx, "issuer_added",
			"issuer", issuer,
			"actor", caller,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	return nil
}

// Issuers returns the explicit issuer set, sorted. The administrator is not listed.
func (c *Controller) Issuers() []id.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]id.Address, 0, len(c.issuers))
	for issuer := range c.issuers {
		out = append(out, issuer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
