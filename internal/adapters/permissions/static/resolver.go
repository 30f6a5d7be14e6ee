// Package static resolves permissions from configured defaults and
// per-session grants that can be changed at runtime.
package static

import (
	"sort"
	"sync"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
)

type Resolver struct {
	mu       sync.RWMutex
	defaults map[string]struct{}
	grants   map[domain.SessionID]map[string]struct{}
}

var _ ports.PermissionResolver = (*Resolver)(nil)

func NewResolver(defaults []string, grants map[domain.SessionID][]string) *Resolver {
	r := &Resolver{}
	r.Replace(defaults, grants)
	return r
}

// Replace swaps the configured defaults and grants, dropping runtime
// changes.
func (r *Resolver) Replace(defaults []string, grants map[domain.SessionID][]string) {
	d := make(map[string]struct{}, len(defaults))
	for _, p := range defaults {
		d[p] = struct{}{}
	}
	g := make(map[domain.SessionID]map[string]struct{}, len(grants))
	for id, perms := range grants {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		g[id] = set
	}

	r.mu.Lock()
	r.defaults = d
	r.grants = g
	r.mu.Unlock()
}

func (r *Resolver) HasPermission(id domain.SessionID, permission string) bool {
	if permission == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.defaults[permission]; ok {
		return true
	}
	_, ok := r.grants[id][permission]
	return ok
}

func (r *Resolver) Grant(id domain.SessionID, permission string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.grants[id]
	if !ok {
		set = map[string]struct{}{}
		r.grants[id] = set
	}
	set[permission] = struct{}{}
}

// Revoke removes a per-session grant. Defaults cannot be revoked.
func (r *Resolver) Revoke(id domain.SessionID, permission string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[id], permission)
	if len(r.grants[id]) == 0 {
		delete(r.grants, id)
	}
}

// Permissions lists the session's effective permissions in order.
func (r *Resolver) Permissions(id domain.SessionID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defaults)+len(r.grants[id]))
	for p := range r.defaults {
		out = append(out, p)
	}
	for p := range r.grants[id] {
		if _, dup := r.defaults[p]; !dup {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
