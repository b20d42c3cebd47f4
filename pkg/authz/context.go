package authz

import (
	"context"

	"github.com/rentfold/rentfold/pkg/contextkeys"
)

// UserContext is the normalized identity handed to business logic after
// resolution. It erases which underlying table the actor came from; a
// handler sees only the effective role and its fields. Each role has its
// own variant so a context can never carry fields that do not apply to its
// role.
type UserContext interface {
	Role() Role
	ActorID() int64
	ActorEmail() string
	ActorName() string
}

// OrgScoped is implemented by context variants bound to an organization.
// Tenants may carry no organization when they have no active lease; the
// second return reports presence.
type OrgScoped interface {
	Organization() (int64, bool)
}

// LandlordContext is the effective identity on landlord-scoped requests
type LandlordContext struct {
	ID             int64
	Email          string
	Name           string
	OrganizationID *int64
}

func (c *LandlordContext) Role() Role         { return RoleLandlord }
func (c *LandlordContext) ActorID() int64     { return c.ID }
func (c *LandlordContext) ActorEmail() string { return c.Email }
func (c *LandlordContext) ActorName() string  { return c.Name }

// Organization returns the owning organization, when set
func (c *LandlordContext) Organization() (int64, bool) {
	if c.OrganizationID == nil {
		return 0, false
	}
	return *c.OrganizationID, true
}

// TenantContext is the effective identity on tenant-scoped requests. The
// organization is inherited through the active lease's property and may be
// absent.
type TenantContext struct {
	ID             int64
	Email          string
	Name           string
	OrganizationID *int64
}

func (c *TenantContext) Role() Role         { return RoleTenant }
func (c *TenantContext) ActorID() int64     { return c.ID }
func (c *TenantContext) ActorEmail() string { return c.Email }
func (c *TenantContext) ActorName() string  { return c.Name }

// Organization returns the inherited organization, when one was derived
func (c *TenantContext) Organization() (int64, bool) {
	if c.OrganizationID == nil {
		return 0, false
	}
	return *c.OrganizationID, true
}

// VendorContext is the effective identity for vendors
type VendorContext struct {
	ID    int64
	Email string
	Name  string
}

func (c *VendorContext) Role() Role         { return RoleVendor }
func (c *VendorContext) ActorID() int64     { return c.ID }
func (c *VendorContext) ActorEmail() string { return c.Email }
func (c *VendorContext) ActorName() string  { return c.Name }

// ContractorContext is the effective identity for contractors
type ContractorContext struct {
	ID    int64
	Email string
	Name  string
}

func (c *ContractorContext) Role() Role         { return RoleContractor }
func (c *ContractorContext) ActorID() int64     { return c.ID }
func (c *ContractorContext) ActorEmail() string { return c.Email }
func (c *ContractorContext) ActorName() string  { return c.Name }

// CompanyContext is the effective identity when a management company acts,
// either directly or through a PMC-admin's delegation. On delegation the
// ActorID is the company's ID, not the admin's: the company is the actor
// administering landlord and tenant data.
type CompanyContext struct {
	ID        int64
	Email     string
	Name      string
	Delegated bool
}

func (c *CompanyContext) Role() Role         { return RolePMC }
func (c *CompanyContext) ActorID() int64     { return c.ID }
func (c *CompanyContext) ActorEmail() string { return c.Email }
func (c *CompanyContext) ActorName() string  { return c.Name }

// AdminContext is the effective identity for back-office admins
type AdminContext struct {
	ID    int64
	Email string
	Name  string
}

func (c *AdminContext) Role() Role         { return RoleAdmin }
func (c *AdminContext) ActorID() int64     { return c.ID }
func (c *AdminContext) ActorEmail() string { return c.Email }
func (c *AdminContext) ActorName() string  { return c.Name }

// AnonymousContext is the tenant-shaped blank identity used for skipAuth
// public endpoints
type AnonymousContext struct{}

func (c *AnonymousContext) Role() Role         { return RoleTenant }
func (c *AnonymousContext) ActorID() int64     { return 0 }
func (c *AnonymousContext) ActorEmail() string { return "" }
func (c *AnonymousContext) ActorName() string  { return "" }

// FromContext retrieves the resolved user context from a request context
func FromContext(ctx context.Context) (UserContext, bool) {
	uc, ok := ctx.Value(contextkeys.UserContextKey).(UserContext)
	return uc, ok
}
