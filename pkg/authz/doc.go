// Package authz resolves a request's effective identity and role.
//
// A single email may exist in several actor tables at once (landlord,
// tenant, vendor, contractor, management company, admin). The resolver
// picks exactly one effective identity per request using the route's
// class, a fixed priority order on generic routes, the handler's
// permitted-role set, and PMC delegation for admins holding a PMC_ADMIN
// grant. Approval gating is part of resolution: an unapproved first
// candidate rejects the request rather than deferring to a lower-priority
// identity.
package authz
