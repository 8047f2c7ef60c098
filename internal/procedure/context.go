// Package procedure composes request-authorization middleware chains.
//
// A procedure is an ordered list of middlewares ending in a terminal
// handler. Each middleware receives the accumulated Context and a next
// continuation; it may extend the context and call next, transform the
// result after next returns, or short-circuit by not calling next at all.
// Every organization-scoped operation in the application is guarded by a
// chain built here.
package procedure

import (
	"maps"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
)

// Context is the value accumulated along a middleware chain. It is
// append-only: extension methods return a copy, and a chain execution never
// mutates a Context another frame already holds. It is created empty at
// dispatch start and discarded when the terminal handler returns.
//
// Session, OrganizationID, and Membership are the well-known fields the
// built-in middlewares populate. Arbitrary extras ride in a copy-on-write
// key/value bag.
type Context struct {
	// Session is set by Auth or AdminOnly.
	Session *auth.SessionData

	// OrganizationID and Membership are set by OrgContext. Membership is
	// nil when a global admin was allowed into an organization they do not
	// belong to; downstream code must treat that as "acting as global
	// admin, no tenant role", not as an error.
	OrganizationID string
	Membership     *model.Membership

	values map[any]any
}

// WithSession returns a copy of the context carrying the session.
func (c Context) WithSession(s *auth.SessionData) Context {
	c.Session = s
	return c
}

// WithOrg returns a copy of the context carrying the resolved organization
// and membership. A nil membership means admin bypass.
func (c Context) WithOrg(organizationID string, m *model.Membership) Context {
	c.OrganizationID = organizationID
	c.Membership = m
	return c
}

// WithValue returns a copy of the context with key mapped to val in the
// extras bag. The bag is cloned so earlier frames never observe the
// addition.
func (c Context) WithValue(key, val any) Context {
	bag := maps.Clone(c.values)
	if bag == nil {
		bag = make(map[any]any, 1)
	}
	bag[key] = val
	c.values = bag
	return c
}

// Value returns the extras-bag entry for key, or nil when absent.
func (c Context) Value(key any) any {
	return c.values[key]
}
