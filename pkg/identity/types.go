package identity

// ApprovalStatus is the per-actor lifecycle gate, independent of
// authentication validity. Anything other than APPROVED is treated as not
// approved.
type ApprovalStatus string

const (
	StatusApproved ApprovalStatus = "APPROVED"
	StatusPending  ApprovalStatus = "PENDING"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Approved reports whether the status passes the approval gate
func (s ApprovalStatus) Approved() bool {
	return s == StatusApproved
}

// ProviderKind distinguishes the two service-provider variants, which share
// a table
type ProviderKind string

const (
	KindVendor     ProviderKind = "vendor"
	KindContractor ProviderKind = "contractor"
)

// Landlord owns properties directly and belongs to an organization
type Landlord struct {
	ID             int64
	Email          string
	FirstName      string
	LastName       string
	ApprovalStatus ApprovalStatus
	OrganizationID *int64
}

// DisplayName returns the landlord's display name
func (l *Landlord) DisplayName() string {
	return l.FirstName + " " + l.LastName
}

// Tenant rents a unit. A tenant has no direct organization column; the
// organization is inherited through the active lease's property.
type Tenant struct {
	ID             int64
	Email          string
	FirstName      string
	LastName       string
	ApprovalStatus ApprovalStatus
}

// DisplayName returns the tenant's display name
func (t *Tenant) DisplayName() string {
	return t.FirstName + " " + t.LastName
}

// ServiceProvider is a vendor or contractor. Service providers have no
// approval gate; any existing row is usable.
type ServiceProvider struct {
	ID          int64
	Email       string
	CompanyName string
	Kind        ProviderKind
}

// ManagementCompany is a PMC: a company-level actor managing landlords and
// tenants on their behalf
type ManagementCompany struct {
	ID             int64
	Email          string
	Name           string
	ApprovalStatus ApprovalStatus
}

// Admin is a back-office operator. Admins are gated by IsActive/IsLocked
// rather than an approval status.
type Admin struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	IsLocked     bool
}

// RoleName is an RBAC role name on a UserRole grant
type RoleName string

// RolePMCAdmin lets an admin act as a specific management company
const RolePMCAdmin RoleName = "PMC_ADMIN"

// UserRole is an RBAC grant. A PMC_ADMIN grant binds an admin to the
// management company identified by PMCID.
type UserRole struct {
	ID       int64
	UserID   int64
	UserType string
	Role     RoleName
	PMCID    *int64
	IsActive bool
}

// ManagingCompany describes an active PMC relationship for a landlord
type ManagingCompany struct {
	PMCID int64
	Name  string
}

// EmailIdentities is the result of the cross-table identity fan-out for a
// single email. Nil fields mean no row matched. DelegatedCompany is the
// company bound to the admin's PMC_ADMIN grant, when one exists; it is
// distinct from Company, which is a management company registered directly
// under the email.
type EmailIdentities struct {
	Landlord         *Landlord
	Tenant           *Tenant
	Vendor           *ServiceProvider
	Contractor       *ServiceProvider
	Company          *ManagementCompany
	Admin            *Admin
	DelegatedCompany *ManagementCompany
}
