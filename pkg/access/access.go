// Package access gates relay usage by chat-platform role membership.
package access

import "sync"

// AdminRole is always allowed, regardless of configuration.
const AdminRole = "Admin"

// Gate decides whether a user's roles permit relay access. A user passes
// when their role set intersects either the configured allow-list or the
// bot's own roles, which the platform boundary refreshes as the bot joins
// and leaves servers.
type Gate struct {
	mu       sync.RWMutex
	allowed  map[string]struct{}
	botRoles map[string]struct{}
}

// NewGate creates a gate allowing the given roles plus AdminRole.
func NewGate(allowedRoles []string) *Gate {
	allowed := map[string]struct{}{AdminRole: {}}
	for _, role := range allowedRoles {
		allowed[role] = struct{}{}
	}
	return &Gate{
		allowed:  allowed,
		botRoles: make(map[string]struct{}),
	}
}

// SetBotRoles replaces the dynamic bot-role set.
func (g *Gate) SetBotRoles(roles []string) {
	next := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		next[role] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.botRoles = next
}

// Allowed reports whether any of the user's roles grants access.
func (g *Gate) Allowed(userRoles []string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, role := range userRoles {
		if _, ok := g.allowed[role]; ok {
			return true
		}
		if _, ok := g.botRoles[role]; ok {
			return true
		}
	}
	return false
}
