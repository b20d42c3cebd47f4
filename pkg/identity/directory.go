package identity

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rentfold/rentfold/pkg/observability"
)

// Directory wraps a Store with the concurrent cross-table fan-out and the
// per-email cache. A DB error on any branch aborts the whole lookup;
// resolution never proceeds with partial identity.
type Directory struct {
	store   Store
	cache   Cache
	metrics *observability.Metrics
}

// NewDirectory creates a Directory. cache may be nil to disable caching;
// metrics may be nil.
func NewDirectory(store Store, cache Cache, metrics *observability.Metrics) *Directory {
	return &Directory{store: store, cache: cache, metrics: metrics}
}

// Store exposes the underlying store for callers that need single-table
// lookups (page auth queries only the tables its declared roles imply).
func (d *Directory) Store() Store {
	return d.store
}

// Invalidate drops the cached snapshot for email. Called after approval
// state changes so the new state is visible immediately.
func (d *Directory) Invalidate(ctx context.Context, email string) {
	if d.cache != nil {
		d.cache.Delete(ctx, email)
	}
}

// LookupByEmail fetches candidate rows for email from every actor table
// concurrently. The admin row is fetched too: a PMC-admin hitting a
// generic route without the admin cookie still needs their delegation
// resolved.
func (d *Directory) LookupByEmail(ctx context.Context, email string) (*EmailIdentities, error) {
	if d.cache != nil {
		if ids, ok := d.cache.Get(ctx, email); ok {
			if d.metrics != nil {
				d.metrics.IdentityCacheHitsTotal.Inc()
			}
			return ids, nil
		}
	}
	if d.metrics != nil {
		d.metrics.IdentityCacheMissesTotal.Inc()
	}

	ids := &EmailIdentities{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l, err := d.store.LandlordByEmail(gctx, email)
		ids.Landlord = l
		return err
	})
	g.Go(func() error {
		t, err := d.store.TenantByEmail(gctx, email)
		ids.Tenant = t
		return err
	})
	g.Go(func() error {
		v, err := d.store.ProviderByEmail(gctx, email, KindVendor)
		ids.Vendor = v
		return err
	})
	g.Go(func() error {
		c, err := d.store.ProviderByEmail(gctx, email, KindContractor)
		ids.Contractor = c
		return err
	})
	g.Go(func() error {
		c, err := d.store.CompanyByEmail(gctx, email)
		ids.Company = c
		return err
	})
	g.Go(func() error {
		a, err := d.store.AdminByEmail(gctx, email)
		if err != nil || a == nil {
			return err
		}
		ids.Admin = a
		grant, err := d.store.PMCAdminGrant(gctx, a.ID)
		if err != nil || grant == nil || grant.PMCID == nil {
			return err
		}
		company, err := d.store.CompanyByID(gctx, *grant.PMCID)
		if err != nil {
			return err
		}
		ids.DelegatedCompany = company
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.cache != nil {
		d.cache.Set(ctx, email, ids)
	}
	return ids, nil
}

// Delegation resolves an admin's PMC_ADMIN grant to its management
// company. Returns nil when the admin holds no active grant.
func (d *Directory) Delegation(ctx context.Context, adminID int64) (*ManagementCompany, error) {
	grant, err := d.store.PMCAdminGrant(ctx, adminID)
	if err != nil || grant == nil || grant.PMCID == nil {
		return nil, err
	}
	return d.store.CompanyByID(ctx, *grant.PMCID)
}
