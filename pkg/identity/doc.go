// Package identity is the read-only view over the actor tables: landlords,
// tenants, service providers (vendors and contractors), management
// companies, admins, and RBAC grants.
//
// Emails are unique within a table but not across tables; the same email
// can plausibly exist as both a landlord and a tenant. The Directory fans
// out across all tables concurrently and caches the snapshot per email for
// a short TTL. Which identity wins for a given request is decided by the
// authz package, not here.
package identity
