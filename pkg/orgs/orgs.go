// Package orgs provides the organization lookup consumed by the quota
// tracker. An organization is the multi-tenancy boundary: it owns
// landlords directly and tenants transitively through their lease's
// property, and it carries the monthly API-call ceiling.
package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// Organization is a multi-tenancy boundary. MaxAPICallsPerMonth of nil
// means unlimited.
type Organization struct {
	ID                  int64
	Name                string
	MaxAPICallsPerMonth *int64
}

// Service is the organization lookup interface
type Service interface {
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
}

// PostgresService implements Service against PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgreSQL organization service
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// GetOrganization returns the organization with the given ID, or nil when
// it does not exist
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, max_api_calls_per_month
		FROM organizations
		WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.MaxAPICallsPerMonth)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}
	return org, nil
}
