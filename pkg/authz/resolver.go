package authz

import (
	"context"

	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/observability"
)

// Resolver is the role resolution engine. Given a raw identity (an email
// from the web session, or a validated admin) and the requested route, it
// picks exactly one effective identity per request, applying route-aware
// precedence and PMC delegation. It never errors on ambiguity: the same
// email may legitimately exist in several actor tables.
type Resolver struct {
	dir     *identity.Directory
	routes  *RouteTable
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver. metrics may be nil.
func NewResolver(dir *identity.Directory, routes *RouteTable, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	if routes == nil {
		routes = DefaultRouteTable()
	}
	return &Resolver{dir: dir, routes: routes, logger: logger, metrics: metrics}
}

// Routes exposes the route table for callers that classify paths
func (r *Resolver) Routes() *RouteTable {
	return r.routes
}

// ResolveAdmin maps a validated admin session to an effective identity.
// An admin holding a PMC_ADMIN grant bound to an approved company is
// dispatched as that company on landlord/tenant routes; the company's ID
// becomes the actor ID. Everywhere else the admin acts as themselves.
// Admin resolution is terminal: it never falls through to the web-session
// path.
func (r *Resolver) ResolveAdmin(ctx context.Context, admin *identity.Admin, path string) (UserContext, error) {
	company, err := r.dir.Delegation(ctx, admin.ID)
	if err != nil {
		return nil, err
	}

	class := r.routes.Classify(path)
	if company != nil && company.ApprovalStatus.Approved() && class.DelegationEligible() {
		r.count(RolePMC, "ok")
		return &CompanyContext{ID: company.ID, Email: company.Email, Name: company.Name, Delegated: true}, nil
	}

	r.count(RoleAdmin, "ok")
	return &AdminContext{ID: admin.ID, Email: admin.Email, Name: admin.Name}, nil
}

// ResolveAdminPage is the page variant of ResolveAdmin. A page's permitted
// roles are declared statically rather than derived from the path, so
// delegation applies when the page serves landlords or tenants and the
// grant's company is approved. The company context carries the managing
// company's display name for the page banner.
func (r *Resolver) ResolveAdminPage(ctx context.Context, admin *identity.Admin, roles []Role) (UserContext, error) {
	company, err := r.dir.Delegation(ctx, admin.ID)
	if err != nil {
		return nil, err
	}

	declared := newRoleSet(roles)
	if company != nil && company.ApprovalStatus.Approved() &&
		(declared.Has(RoleLandlord) || declared.Has(RoleTenant)) {
		r.count(RolePMC, "ok")
		return &CompanyContext{ID: company.ID, Email: company.Email, Name: company.Name, Delegated: true}, nil
	}

	r.count(RoleAdmin, "ok")
	return &AdminContext{ID: admin.ID, Email: admin.Email, Name: admin.Name}, nil
}

// ResolveEmail maps a web-session email to an effective identity for the
// requested path. allowed is the permitted-role set declared by the
// handler; empty permits every role. The allowed set participates in
// resolution (it gates PMC delegation and the direct-match deference
// rule), and is enforced again by the middleware after resolution.
func (r *Resolver) ResolveEmail(ctx context.Context, email, path string, allowed []Role) (UserContext, error) {
	ids, err := r.dir.LookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	class := r.routes.Classify(path)
	statusProbe := path == StatusProbePath
	allow := newRoleSet(allowed)

	// The PMC-admin's delegated company takes precedence over a company
	// registered directly under the email.
	company := ids.DelegatedCompany
	delegated := company != nil
	if company == nil {
		company = ids.Company
	}
	delegationOK := company != nil && company.ApprovalStatus.Approved() && allow.Has(RolePMC)

	uc, err := r.resolveClass(ctx, ids, class, statusProbe, allow, allowed, company, delegated, delegationOK)
	if err != nil {
		r.countErr(err)
		return nil, err
	}
	r.count(uc.Role(), "ok")
	return uc, nil
}

func (r *Resolver) resolveClass(ctx context.Context, ids *identity.EmailIdentities, class RouteClass, statusProbe bool, allow roleSet, required []Role, company *identity.ManagementCompany, delegated, delegationOK bool) (UserContext, error) {
	switch class {
	case RouteLandlord:
		// A direct landlord wins over delegation when both exist and the
		// landlord role is permitted. When the direct role is not in the
		// permitted set, resolution falls through to delegation.
		if ids.Landlord != nil && allow.Has(RoleLandlord) {
			if !ids.Landlord.ApprovalStatus.Approved() {
				return nil, &ApprovalError{Role: RoleLandlord, Status: ids.Landlord.ApprovalStatus}
			}
			return r.landlordContext(ids.Landlord), nil
		}
		if delegationOK {
			if ids.Landlord != nil {
				r.logger.WithField("route_class", string(class)).
					Debug("direct landlord identity exists but role not permitted; dispatching as company")
			}
			return r.companyContext(company, delegated), nil
		}
		return nil, &RouteRoleError{Class: class}

	case RouteTenant:
		if ids.Tenant != nil && allow.Has(RoleTenant) {
			if !ids.Tenant.ApprovalStatus.Approved() {
				return nil, &ApprovalError{Role: RoleTenant, Status: ids.Tenant.ApprovalStatus}
			}
			return r.tenantContext(ctx, ids.Tenant), nil
		}
		if delegationOK {
			return r.companyContext(company, delegated), nil
		}
		return nil, &RouteRoleError{Class: class}

	case RouteVendor:
		// Service providers have no approval gate.
		if ids.Vendor != nil && allow.Has(RoleVendor) {
			return &VendorContext{ID: ids.Vendor.ID, Email: ids.Vendor.Email, Name: ids.Vendor.CompanyName}, nil
		}
		return nil, &RouteRoleError{Class: class}

	case RouteContractor:
		if ids.Contractor != nil && allow.Has(RoleContractor) {
			return &ContractorContext{ID: ids.Contractor.ID, Email: ids.Contractor.Email, Name: ids.Contractor.CompanyName}, nil
		}
		return nil, &RouteRoleError{Class: class}

	case RoutePMC:
		if company != nil && allow.Has(RolePMC) {
			if !company.ApprovalStatus.Approved() {
				return nil, &ApprovalError{Role: RolePMC, Status: company.ApprovalStatus}
			}
			return r.companyContext(company, delegated), nil
		}
		return nil, &RouteRoleError{Class: class}

	default:
		return r.resolveGeneric(ctx, ids, statusProbe, allow, required, company, delegated)
	}
}

// resolveGeneric applies the fixed priority Landlord > Tenant > PMC >
// Vendor > Contractor. The first permitted candidate decides the request;
// an unapproved first candidate is rejected rather than skipped, except on
// the status probe.
func (r *Resolver) resolveGeneric(ctx context.Context, ids *identity.EmailIdentities, statusProbe bool, allow roleSet, required []Role, company *identity.ManagementCompany, delegated bool) (UserContext, error) {
	if ids.Landlord != nil && allow.Has(RoleLandlord) {
		if !ids.Landlord.ApprovalStatus.Approved() && !statusProbe {
			return nil, &ApprovalError{Role: RoleLandlord, Status: ids.Landlord.ApprovalStatus}
		}
		return r.landlordContext(ids.Landlord), nil
	}
	if ids.Tenant != nil && allow.Has(RoleTenant) {
		if !ids.Tenant.ApprovalStatus.Approved() && !statusProbe {
			return nil, &ApprovalError{Role: RoleTenant, Status: ids.Tenant.ApprovalStatus}
		}
		return r.tenantContext(ctx, ids.Tenant), nil
	}
	if company != nil && allow.Has(RolePMC) {
		if !company.ApprovalStatus.Approved() && !statusProbe {
			return nil, &ApprovalError{Role: RolePMC, Status: company.ApprovalStatus}
		}
		return r.companyContext(company, delegated), nil
	}
	if ids.Vendor != nil && allow.Has(RoleVendor) {
		return &VendorContext{ID: ids.Vendor.ID, Email: ids.Vendor.Email, Name: ids.Vendor.CompanyName}, nil
	}
	if ids.Contractor != nil && allow.Has(RoleContractor) {
		return &ContractorContext{ID: ids.Contractor.ID, Email: ids.Contractor.Email, Name: ids.Contractor.CompanyName}, nil
	}
	// An actor whose identities were all filtered out by the permitted-role
	// set is distinguishable from an unknown email: the rejection names the
	// required roles.
	if allow != nil && (ids.Landlord != nil || ids.Tenant != nil || company != nil || ids.Vendor != nil || ids.Contractor != nil) {
		return nil, &RolePermissionError{Required: required}
	}
	return nil, ErrNoIdentity
}

func (r *Resolver) landlordContext(l *identity.Landlord) *LandlordContext {
	return &LandlordContext{ID: l.ID, Email: l.Email, Name: l.DisplayName(), OrganizationID: l.OrganizationID}
}

func (r *Resolver) companyContext(c *identity.ManagementCompany, delegated bool) *CompanyContext {
	return &CompanyContext{ID: c.ID, Email: c.Email, Name: c.Name, Delegated: delegated}
}

// tenantContext builds a tenant context, deriving the organization through
// the lease walk. Derivation failure never fails the request: the field is
// non-critical and the miss is logged as a warning.
func (r *Resolver) tenantContext(ctx context.Context, t *identity.Tenant) *TenantContext {
	orgID, err := r.DeriveTenantOrganization(ctx, t.ID)
	if err != nil {
		r.logger.WithError(err).WithField("tenant_id", t.ID).
			Warn("failed to derive tenant organization; continuing without one")
		orgID = nil
	}
	return &TenantContext{ID: t.ID, Email: t.Email, Name: t.DisplayName(), OrganizationID: orgID}
}

// DeriveTenantOrganization walks tenant -> lease -> unit -> property and
// returns the owning organization. A tenant with no active lease yields
// (nil, nil); only infrastructure failures return an error. Exposed so the
// warning path and the happy path can be asserted separately.
func (r *Resolver) DeriveTenantOrganization(ctx context.Context, tenantID int64) (*int64, error) {
	return r.dir.Store().TenantOrganization(ctx, tenantID)
}

// ResolvePage resolves an email for a server-rendered page whose permitted
// roles are known statically. Only the tables implied by the declared
// roles are queried, in the fixed priority order. Returns ErrNoIdentity
// when no declared role matches (the caller redirects to registration) and
// ApprovalError when the matching actor is not approved (the caller
// redirects to the pending-approval page).
func (r *Resolver) ResolvePage(ctx context.Context, email string, roles []Role) (UserContext, error) {
	store := r.dir.Store()

	for _, role := range pagePriority(roles) {
		switch role {
		case RoleLandlord:
			l, err := store.LandlordByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if l != nil {
				if !l.ApprovalStatus.Approved() {
					return nil, &ApprovalError{Role: RoleLandlord, Status: l.ApprovalStatus}
				}
				return r.landlordContext(l), nil
			}
		case RoleTenant:
			t, err := store.TenantByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if t != nil {
				if !t.ApprovalStatus.Approved() {
					return nil, &ApprovalError{Role: RoleTenant, Status: t.ApprovalStatus}
				}
				return r.tenantContext(ctx, t), nil
			}
		case RolePMC:
			c, err := store.CompanyByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if c != nil {
				if !c.ApprovalStatus.Approved() {
					return nil, &ApprovalError{Role: RolePMC, Status: c.ApprovalStatus}
				}
				return r.companyContext(c, false), nil
			}
		case RoleVendor:
			v, err := store.ProviderByEmail(ctx, email, identity.KindVendor)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return &VendorContext{ID: v.ID, Email: v.Email, Name: v.CompanyName}, nil
			}
		case RoleContractor:
			c, err := store.ProviderByEmail(ctx, email, identity.KindContractor)
			if err != nil {
				return nil, err
			}
			if c != nil {
				return &ContractorContext{ID: c.ID, Email: c.Email, Name: c.CompanyName}, nil
			}
		}
	}

	return nil, ErrNoIdentity
}

// pagePriority orders declared roles by the fixed resolution priority
func pagePriority(roles []Role) []Role {
	order := []Role{RoleLandlord, RoleTenant, RolePMC, RoleVendor, RoleContractor}
	declared := newRoleSet(roles)
	out := make([]Role, 0, len(order))
	for _, r := range order {
		if declared.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (r *Resolver) count(role Role, outcome string) {
	if r.metrics != nil {
		r.metrics.AuthResolutionsTotal.WithLabelValues(string(role), outcome).Inc()
	}
}

func (r *Resolver) countErr(err error) {
	if r.metrics == nil {
		return
	}
	if ae, ok := AsApprovalError(err); ok {
		r.metrics.ApprovalRejectionsTotal.WithLabelValues(string(ae.Role), string(ae.Status)).Inc()
		return
	}
	if _, ok := AsRouteRoleError(err); ok {
		r.metrics.AuthResolutionsTotal.WithLabelValues("", "forbidden").Inc()
		return
	}
	if _, ok := AsRolePermissionError(err); ok {
		r.metrics.AuthResolutionsTotal.WithLabelValues("", "forbidden").Inc()
		return
	}
	r.metrics.AuthResolutionsTotal.WithLabelValues("", "not_found").Inc()
}
