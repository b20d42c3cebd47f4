package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store against PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL identity store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LandlordByEmail returns the landlord registered under email, or nil
func (s *PostgresStore) LandlordByEmail(ctx context.Context, email string) (*Landlord, error) {
	l := &Landlord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, approval_status, organization_id
		FROM landlords
		WHERE email = $1
	`, email).Scan(&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.ApprovalStatus, &l.OrganizationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query landlord: %w", err)
	}
	return l, nil
}

// TenantByEmail returns the tenant registered under email, or nil
func (s *PostgresStore) TenantByEmail(ctx context.Context, email string) (*Tenant, error) {
	t := &Tenant{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, approval_status
		FROM tenants
		WHERE email = $1
	`, email).Scan(&t.ID, &t.Email, &t.FirstName, &t.LastName, &t.ApprovalStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return t, nil
}

// ProviderByEmail returns the vendor or contractor registered under email,
// or nil. Both variants share the service_providers table.
func (s *PostgresStore) ProviderByEmail(ctx context.Context, email string, kind ProviderKind) (*ServiceProvider, error) {
	p := &ServiceProvider{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, company_name, provider_kind
		FROM service_providers
		WHERE email = $1 AND provider_kind = $2
	`, email, string(kind)).Scan(&p.ID, &p.Email, &p.CompanyName, &p.Kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query service provider: %w", err)
	}
	return p, nil
}

// CompanyByEmail returns the management company registered under email, or nil
func (s *PostgresStore) CompanyByEmail(ctx context.Context, email string) (*ManagementCompany, error) {
	c := &ManagementCompany{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, approval_status
		FROM management_companies
		WHERE email = $1
	`, email).Scan(&c.ID, &c.Email, &c.Name, &c.ApprovalStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query management company: %w", err)
	}
	return c, nil
}

// CompanyByID returns the management company with the given ID, or nil
func (s *PostgresStore) CompanyByID(ctx context.Context, id int64) (*ManagementCompany, error) {
	c := &ManagementCompany{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, approval_status
		FROM management_companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Email, &c.Name, &c.ApprovalStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query management company: %w", err)
	}
	return c, nil
}

// AdminByEmail returns the admin registered under email, or nil
func (s *PostgresStore) AdminByEmail(ctx context.Context, email string) (*Admin, error) {
	a := &Admin{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, is_active, is_locked
		FROM admins
		WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.IsLocked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}
	return a, nil
}

// AdminByID returns the admin with the given ID, or nil
func (s *PostgresStore) AdminByID(ctx context.Context, id int64) (*Admin, error) {
	a := &Admin{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, is_active, is_locked
		FROM admins
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.IsLocked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}
	return a, nil
}

// PMCAdminGrant returns the admin's active PMC_ADMIN grant, or nil
func (s *PostgresStore) PMCAdminGrant(ctx context.Context, adminID int64) (*UserRole, error) {
	r := &UserRole{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_type, role, pmc_id, is_active
		FROM user_roles
		WHERE user_id = $1 AND user_type = 'admin' AND role = $2 AND is_active = true
	`, adminID, string(RolePMCAdmin)).Scan(&r.ID, &r.UserID, &r.UserType, &r.Role, &r.PMCID, &r.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user role: %w", err)
	}
	return r, nil
}

// TenantOrganization resolves the tenant's organization through the active
// lease's unit and property. Returns nil when the tenant has no active
// lease or the property has no organization.
func (s *PostgresStore) TenantOrganization(ctx context.Context, tenantID int64) (*int64, error) {
	var orgID *int64
	err := s.db.QueryRowContext(ctx, `
		SELECT p.organization_id
		FROM lease_tenants lt
		JOIN leases l ON l.id = lt.lease_id
		JOIN units u ON u.id = l.unit_id
		JOIN properties p ON p.id = u.property_id
		WHERE lt.tenant_id = $1 AND l.status = 'active'
		ORDER BY l.start_date DESC
		LIMIT 1
	`, tenantID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant organization: %w", err)
	}
	return orgID, nil
}

// LandlordManagedBy returns the company managing the landlord through an
// active relationship, or nil
func (s *PostgresStore) LandlordManagedBy(ctx context.Context, landlordID int64) (*ManagingCompany, error) {
	mc := &ManagingCompany{}
	err := s.db.QueryRowContext(ctx, `
		SELECT pl.pmc_id, mc.name
		FROM pmc_landlords pl
		JOIN management_companies mc ON mc.id = pl.pmc_id
		WHERE pl.landlord_id = $1
		  AND pl.status = 'active'
		  AND (pl.ended_at IS NULL OR pl.ended_at > NOW())
		LIMIT 1
	`, landlordID).Scan(&mc.PMCID, &mc.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query managing company: %w", err)
	}
	return mc, nil
}
