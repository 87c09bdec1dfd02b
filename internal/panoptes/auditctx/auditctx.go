// Package auditctx carries the acting user and request metadata through
// context.Context so that intercepted queries can be attributed.
package auditctx

import (
	"context"
	"strings"
	"sync"

	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

// ActorType identifies who initiated a database operation.
type ActorType string

const (
	ActorUser    ActorType = "USER"
	ActorSystem  ActorType = "SYSTEM"
	ActorService ActorType = "SERVICE"
)

// ParseActorType coerces s case-insensitively. Unknown or empty values map to USER.
func ParseActorType(s string) ActorType {
	switch ActorType(strings.ToUpper(strings.TrimSpace(s))) {
	case ActorSystem:
		return ActorSystem
	case ActorService:
		return ActorService
	default:
		return ActorUser
	}
}

// UserContext is the caller-supplied identity of the current unit of work.
// AppUserID and TenantID keep whatever type the host uses (int, string, uuid).
type UserContext struct {
	ActorType   ActorType
	AppUserID   any
	AppUsername string
	AppRoles    []string
	TenantID    any

	IPAddress string
	UserAgent string
	RequestID string
	SessionID string
	SourceApp string
}

func (u *UserContext) clone() *UserContext {
	if u == nil {
		return nil
	}
	c := *u
	c.ActorType = ParseActorType(string(u.ActorType))
	if u.AppRoles != nil {
		c.AppRoles = append([]string(nil), u.AppRoles...)
	}
	return &c
}

type cell struct {
	mu sync.RWMutex
	uc *UserContext
}

type cellKey struct{}

func cellFrom(ctx context.Context) *cell {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(cellKey{}).(*cell)
	return c
}

// Scope installs an empty cell that later Set and Clear calls on ctx, or any
// context derived from it, will write to.
func Scope(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cellKey{}, &cell{})
}

// With returns a child context bound to a copy of uc. The parent's value is
// not affected.
func With(ctx context.Context, uc UserContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cellKey{}, &cell{uc: uc.clone()})
}

// noScopeWarning is logged once per process, the first time Set is called
// without a scope.
var noScopeWarning = &sync.Once{}

// Set overwrites the value of the nearest enclosing scope. It reports false
// when ctx carries no scope; uc is then dropped and a warning is logged once.
func Set(ctx context.Context, uc UserContext) bool {
	c := cellFrom(ctx)
	if c == nil {
		noScopeWarning.Do(func() {
			logger.L().Warnw("user context dropped: context has no audit scope; use Scope, Middleware or Run",
				"actor_type", uc.ActorType,
				"request_id", uc.RequestID,
			)
		})
		return false
	}
	c.mu.Lock()
	c.uc = uc.clone()
	c.mu.Unlock()
	return true
}

// Clear empties the nearest enclosing scope.
func Clear(ctx context.Context) {
	c := cellFrom(ctx)
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uc = nil
	c.mu.Unlock()
}

// Get returns a copy of the current user context, or nil when none is bound.
func Get(ctx context.Context) *UserContext {
	c := cellFrom(ctx)
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uc.clone()
}

// Run executes fn with uc bound for fn and everything it derives from the
// context it receives.
func Run(ctx context.Context, uc UserContext, fn func(context.Context) error) error {
	return fn(With(ctx, uc))
}
