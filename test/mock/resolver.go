// engine/test/mock/resolver.go
package mock

import (
	"context"
	"sync"
	"time"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// FakeResolver serves canned permission sets and counts how often the source
// of truth was consulted. Cache tests assert on the counters.
type FakeResolver struct {
	mu         sync.Mutex
	sets       map[string]model.PermissionSet
	Fail       bool
	Calls      int
	BatchCalls int
}

func NewFakeResolver() *FakeResolver {
	return &FakeResolver{sets: make(map[string]model.PermissionSet)}
}

// Grant registers the permissions served for a principal.
func (r *FakeResolver) Grant(principalID string, roles []string, permissions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[principalID] = model.PermissionSet{
		Permissions: permissions,
		Roles:       roles,
		ResolvedAt:  time.Now(),
	}
}

func (r *FakeResolver) ResolvePermissions(ctx context.Context, principalID, scope, scopeID string) (model.PermissionSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Fail {
		return model.PermissionSet{}, aegis_errors.ErrResolverFailure
	}
	if set, ok := r.sets[principalID]; ok {
		return set, nil
	}
	return model.PermissionSet{ResolvedAt: time.Now()}, nil
}

func (r *FakeResolver) ResolvePermissionsBatch(ctx context.Context, principalIDs []string, scope, scopeID string) (map[string]model.PermissionSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BatchCalls++
	if r.Fail {
		return nil, aegis_errors.ErrResolverFailure
	}
	out := make(map[string]model.PermissionSet, len(principalIDs))
	for _, id := range principalIDs {
		if set, ok := r.sets[id]; ok {
			out[id] = set
		} else {
			out[id] = model.PermissionSet{ResolvedAt: time.Now()}
		}
	}
	return out, nil
}
