package identity

import "context"

// Store is the read-only view over the actor tables consumed by the role
// resolution engine. Lookups return (nil, nil) when no row matches;
// errors indicate infrastructure failure, never a missing actor.
type Store interface {
	LandlordByEmail(ctx context.Context, email string) (*Landlord, error)
	TenantByEmail(ctx context.Context, email string) (*Tenant, error)
	ProviderByEmail(ctx context.Context, email string, kind ProviderKind) (*ServiceProvider, error)
	CompanyByEmail(ctx context.Context, email string) (*ManagementCompany, error)
	CompanyByID(ctx context.Context, id int64) (*ManagementCompany, error)
	AdminByEmail(ctx context.Context, email string) (*Admin, error)
	AdminByID(ctx context.Context, id int64) (*Admin, error)

	// PMCAdminGrant returns the active PMC_ADMIN grant for an admin, if any.
	PMCAdminGrant(ctx context.Context, adminID int64) (*UserRole, error)

	// TenantOrganization walks tenant -> lease -> unit -> property and
	// returns the owning organization ID, or nil when the tenant has no
	// active lease or the property carries no organization.
	TenantOrganization(ctx context.Context, tenantID int64) (*int64, error)

	// LandlordManagedBy returns the management company with an active
	// relationship to the landlord (status active, not ended), if any.
	LandlordManagedBy(ctx context.Context, landlordID int64) (*ManagingCompany, error)
}
