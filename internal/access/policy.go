// Package access decides whether a caller may perform an operation on a page.
//
// There is one code path: load the caller's role and its privilege rows and
// look the cell up. Superuser is a flag on the role record, not a role name.
// A missing role, a missing row or an unreachable store all deny.
package access

import (
	"context"
	"strings"
	"sync"
	"time"

	"opsdesk/internal/model"

	"go.uber.org/zap"
)

// Subject is the authenticated caller.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// RoleStore is the read side of the privilege matrix.
type RoleStore interface {
	FindRoleByName(ctx context.Context, name string) (*model.Role, error)
	ListPrivilegesByRole(ctx context.Context, roleName string) ([]model.RolePrivilege, error)
}

type Config struct {
	BreakGlassEmail string
	CacheTTL        time.Duration
}

type cell struct {
	page model.Page
	op   model.Operation
}

// grants is a per-role snapshot of the matrix.
type grants struct {
	superuser bool
	allowed   map[cell]bool
	expiresAt time.Time
}

type Policy struct {
	store      RoleStore
	breakGlass string
	ttl        time.Duration
	log        *zap.Logger
	now        func() time.Time

	cache sync.Map // role name -> grants
}

func NewPolicy(store RoleStore, cfg Config, log *zap.Logger) *Policy {
	return &Policy{
		store:      store,
		breakGlass: strings.ToLower(strings.TrimSpace(cfg.BreakGlassEmail)),
		ttl:        cfg.CacheTTL,
		log:        log.Named("access"),
		now:        time.Now,
	}
}

// Decide is the single authorization entry point used by route middleware
// and by the capability listing.
func (p *Policy) Decide(ctx context.Context, s Subject, page model.Page, op model.Operation) bool {
	if p.isBreakGlass(s) {
		p.log.Warn("break-glass access granted",
			zap.String("email", s.Email),
			zap.String("page", string(page)),
			zap.String("operation", string(op)),
		)
		return true
	}
	return p.HasCapability(ctx, s.Role, page, op)
}

// HasCapability answers for a role alone, without identity overrides.
func (p *Policy) HasCapability(ctx context.Context, role string, page model.Page, op model.Operation) bool {
	if role == "" || !page.Valid() || !op.Valid() {
		return false
	}
	g, ok := p.grantsFor(ctx, role)
	if !ok {
		return false
	}
	if g.superuser {
		return true
	}
	return g.allowed[cell{page, op}]
}

// IsSuperuser reports whether the subject bypasses the matrix, either through
// a superuser role or the break-glass identity.
func (p *Policy) IsSuperuser(ctx context.Context, s Subject) bool {
	if p.isBreakGlass(s) {
		return true
	}
	if s.Role == "" {
		return false
	}
	g, ok := p.grantsFor(ctx, s.Role)
	return ok && g.superuser
}

// Capabilities renders the whole matrix row set for a subject, page by page.
func (p *Policy) Capabilities(ctx context.Context, s Subject) map[model.Page]map[model.Operation]bool {
	out := make(map[model.Page]map[model.Operation]bool, len(model.AllPages))
	for _, page := range model.AllPages {
		ops := make(map[model.Operation]bool, len(model.AllOperations))
		for _, op := range model.AllOperations {
			ops[op] = p.Decide(ctx, s, page, op)
		}
		out[page] = ops
	}
	return out
}

// Invalidate drops the cached snapshot for role, or every snapshot when role
// is empty.
func (p *Policy) Invalidate(role string) {
	if role == "" {
		p.cache.Range(func(key, _ interface{}) bool {
			p.cache.Delete(key)
			return true
		})
		return
	}
	p.cache.Delete(role)
}

func (p *Policy) isBreakGlass(s Subject) bool {
	return p.breakGlass != "" && strings.ToLower(strings.TrimSpace(s.Email)) == p.breakGlass
}

func (p *Policy) grantsFor(ctx context.Context, role string) (grants, bool) {
	if entry, ok := p.cache.Load(role); ok {
		g := entry.(grants)
		if p.now().Before(g.expiresAt) {
			return g, true
		}
	}

	g, err := p.load(ctx, role)
	if err != nil {
		// Fail closed. Not cached so the next request retries the store.
		p.log.Warn("privilege lookup failed, denying", zap.String("role", role), zap.Error(err))
		return grants{}, false
	}
	p.cache.Store(role, g)
	return g, true
}

func (p *Policy) load(ctx context.Context, role string) (grants, error) {
	g := grants{allowed: map[cell]bool{}, expiresAt: p.now().Add(p.ttl)}

	r, err := p.store.FindRoleByName(ctx, role)
	if err != nil {
		if isNotFound(err) {
			return g, nil
		}
		return grants{}, err
	}
	g.superuser = r.IsSuperuser

	rows, err := p.store.ListPrivilegesByRole(ctx, role)
	if err != nil {
		return grants{}, err
	}
	for _, row := range rows {
		if row.Allowed {
			g.allowed[cell{row.PageName, row.Operation}] = true
		}
	}
	return g, nil
}
