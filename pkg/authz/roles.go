package authz

// Role is the effective role chosen for a request. It can differ from an
// actor's native table membership: an admin holding a PMC_ADMIN grant acts
// as the company on landlord and tenant routes.
type Role string

const (
	RoleLandlord   Role = "landlord"
	RoleTenant     Role = "tenant"
	RoleVendor     Role = "vendor"
	RoleContractor Role = "contractor"
	RolePMC        Role = "pmc"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleLandlord, RoleTenant, RoleVendor, RoleContractor, RolePMC, RoleAdmin:
		return true
	}
	return false
}

// roleSet is the permitted-role filter derived from a handler's
// requireRole declaration. An empty set permits every role.
type roleSet map[Role]bool

func newRoleSet(roles []Role) roleSet {
	if len(roles) == 0 {
		return nil
	}
	set := make(roleSet, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// Has reports whether the set permits the role. The empty set permits all.
func (s roleSet) Has(r Role) bool {
	return s == nil || s[r]
}
