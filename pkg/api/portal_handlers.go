package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/httputil"
	"github.com/rentfold/rentfold/pkg/middleware"
	"github.com/rentfold/rentfold/pkg/observability"
)

// PortalHandlers serves the role-scoped portal endpoints. Each route's
// permitted-role set doubles as input to resolution: a PMC admin hitting a
// landlord route is dispatched as the company only because the route
// permits the pmc role.
type PortalHandlers struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPortalHandlers creates the portal handlers
func NewPortalHandlers(db *sql.DB, logger *observability.Logger) *PortalHandlers {
	return &PortalHandlers{db: db, logger: logger}
}

// RegisterRoutes registers the portal routes behind the auth middleware
func (h *PortalHandlers) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware) {
	router.HandleFunc("/api/properties", auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
		RequireRole:    []authz.Role{authz.RoleLandlord, authz.RolePMC},
	}, h.listProperties))

	router.HandleFunc("/api/leases", auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
		RequireRole:    []authz.Role{authz.RoleLandlord, authz.RolePMC},
	}, h.listLeases))

	router.HandleFunc("/api/tnt/dashboard", auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
		RequireRole:    []authz.Role{authz.RoleTenant, authz.RolePMC},
	}, h.tenantDashboard))

	router.HandleFunc("/api/vnd/jobs", auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
		RequireRole:    []authz.Role{authz.RoleVendor},
		DisallowAdmin:  true,
	}, h.vendorJobs))

	router.HandleFunc("/api/pmc/portfolio", auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
		RequireRole:    []authz.Role{authz.RolePMC},
	}, h.pmcPortfolio))
}

type propertySummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// listProperties handles GET /api/properties
func (h *PortalHandlers) listProperties(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	var rows *sql.Rows
	var err error
	switch uc.Role() {
	case authz.RoleLandlord:
		rows, err = h.db.QueryContext(r.Context(), `
			SELECT id, name, address FROM properties
			WHERE landlord_id = $1
			ORDER BY id
		`, uc.ActorID())
	case authz.RolePMC:
		rows, err = h.db.QueryContext(r.Context(), `
			SELECT p.id, p.name, p.address
			FROM properties p
			JOIN pmc_landlords pl ON pl.landlord_id = p.landlord_id
			WHERE pl.pmc_id = $1 AND pl.is_active
			ORDER BY p.id
		`, uc.ActorID())
	default:
		httputil.WriteForbidden(w, "Access denied")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rows.Close()

	properties := []propertySummary{}
	for rows.Next() {
		var p propertySummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Address); err != nil {
			h.fail(w, r, err)
			return
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, properties)
}

type leaseSummary struct {
	ID         int64  `json:"id"`
	UnitID     int64  `json:"unitId"`
	Status     string `json:"status"`
	MonthlyRent int64 `json:"monthlyRentCents"`
}

// listLeases handles GET /api/leases
func (h *PortalHandlers) listLeases(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	query := `
		SELECT l.id, l.unit_id, l.status, l.monthly_rent_cents
		FROM leases l
		JOIN units u ON u.id = l.unit_id
		JOIN properties p ON p.id = u.property_id
		WHERE p.landlord_id = $1
		ORDER BY l.id
	`
	if uc.Role() == authz.RolePMC {
		query = `
			SELECT l.id, l.unit_id, l.status, l.monthly_rent_cents
			FROM leases l
			JOIN units u ON u.id = l.unit_id
			JOIN properties p ON p.id = u.property_id
			JOIN pmc_landlords pl ON pl.landlord_id = p.landlord_id
			WHERE pl.pmc_id = $1 AND pl.is_active
			ORDER BY l.id
		`
	}

	rows, err := h.db.QueryContext(r.Context(), query, uc.ActorID())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rows.Close()

	leases := []leaseSummary{}
	for rows.Next() {
		var l leaseSummary
		if err := rows.Scan(&l.ID, &l.UnitID, &l.Status, &l.MonthlyRent); err != nil {
			h.fail(w, r, err)
			return
		}
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, leases)
}

// tenantDashboard handles GET /api/tnt/dashboard
func (h *PortalHandlers) tenantDashboard(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	var lease struct {
		ID          *int64  `json:"id"`
		UnitLabel   *string `json:"unitLabel"`
		MonthlyRent *int64  `json:"monthlyRentCents"`
	}
	err := h.db.QueryRowContext(r.Context(), `
		SELECT l.id, u.label, l.monthly_rent_cents
		FROM lease_tenants lt
		JOIN leases l ON l.id = lt.lease_id
		JOIN units u ON u.id = l.unit_id
		WHERE lt.tenant_id = $1 AND l.status = 'active'
		LIMIT 1
	`, uc.ActorID()).Scan(&lease.ID, &lease.UnitLabel, &lease.MonthlyRent)
	if err != nil && err != sql.ErrNoRows {
		h.fail(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tenant": map[string]interface{}{"id": uc.ActorID(), "name": uc.ActorName()},
		"lease":  lease,
	})
}

// vendorJobs handles GET /api/vnd/jobs
func (h *PortalHandlers) vendorJobs(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, property_id, title, status
		FROM maintenance_jobs
		WHERE provider_id = $1 AND status IN ('OPEN', 'IN_PROGRESS')
		ORDER BY id
	`, uc.ActorID())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rows.Close()

	type job struct {
		ID         int64  `json:"id"`
		PropertyID int64  `json:"propertyId"`
		Title      string `json:"title"`
		Status     string `json:"status"`
	}
	jobs := []job{}
	for rows.Next() {
		var j job
		if err := rows.Scan(&j.ID, &j.PropertyID, &j.Title, &j.Status); err != nil {
			h.fail(w, r, err)
			return
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, jobs)
}

// pmcPortfolio handles GET /api/pmc/portfolio
func (h *PortalHandlers) pmcPortfolio(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	var portfolio struct {
		Landlords  int64 `json:"landlords"`
		Properties int64 `json:"properties"`
	}
	err := h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(DISTINCT pl.landlord_id), COUNT(p.id)
		FROM pmc_landlords pl
		LEFT JOIN properties p ON p.landlord_id = pl.landlord_id
		WHERE pl.pmc_id = $1 AND pl.is_active
	`, uc.ActorID()).Scan(&portfolio.Landlords, &portfolio.Properties)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, portfolio)
}

func (h *PortalHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithError(err).WithField("path", r.URL.Path).Error("portal query failure")
	httputil.WriteInternalError(w, err, false)
}
