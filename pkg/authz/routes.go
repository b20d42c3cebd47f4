package authz

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteClass is the role-shape of a request path
type RouteClass string

const (
	RouteLandlord   RouteClass = "landlord"
	RouteTenant     RouteClass = "tenant"
	RouteVendor     RouteClass = "vendor"
	RouteContractor RouteClass = "contractor"
	RoutePMC        RouteClass = "pmc"
	RouteGeneric    RouteClass = "generic"
)

// StatusProbePath is exempt from the approval gate so pending users can
// still learn their own status
const StatusProbePath = "/api/v1/user/status"

// Rule maps a path prefix to a route class
type Rule struct {
	Prefix string     `yaml:"prefix"`
	Class  RouteClass `yaml:"class"`
}

// RouteTable classifies request paths by prefix. Rules are evaluated in
// order; the first match wins. Paths matching no rule are generic.
type RouteTable struct {
	rules []Rule
}

// NewRouteTable builds a table from explicit rules
func NewRouteTable(rules []Rule) (*RouteTable, error) {
	for i, r := range rules {
		if r.Prefix == "" {
			return nil, fmt.Errorf("rule %d: prefix is required", i)
		}
		switch r.Class {
		case RouteLandlord, RouteTenant, RouteVendor, RouteContractor, RoutePMC:
		default:
			return nil, fmt.Errorf("rule %d: invalid class %q", i, r.Class)
		}
	}
	return &RouteTable{rules: rules}, nil
}

// DefaultRouteTable returns the built-in classification rules
func DefaultRouteTable() *RouteTable {
	return &RouteTable{rules: []Rule{
		{Prefix: "/api/lld/", Class: RouteLandlord},
		{Prefix: "/api/landlords", Class: RouteLandlord},
		{Prefix: "/api/properties", Class: RouteLandlord},
		{Prefix: "/api/leases", Class: RouteLandlord},
		{Prefix: "/api/tnt/", Class: RouteTenant},
		{Prefix: "/api/tenants", Class: RouteTenant},
		{Prefix: "/api/vnd/", Class: RouteVendor},
		{Prefix: "/api/vendors", Class: RouteVendor},
		{Prefix: "/api/ctr/", Class: RouteContractor},
		{Prefix: "/api/contractors", Class: RouteContractor},
		{Prefix: "/api/pmc/", Class: RoutePMC},
		{Prefix: "/api/companies", Class: RoutePMC},
	}}
}

// LoadRouteTable reads a rule list from a YAML file, replacing the
// defaults
func LoadRouteTable(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	return NewRouteTable(rules)
}

// Classify returns the route class for a request path
func (t *RouteTable) Classify(path string) RouteClass {
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Class
		}
	}
	return RouteGeneric
}

// DelegationEligible reports whether a management company may stand in
// for missing landlord/tenant identities on this class of route
func (c RouteClass) DelegationEligible() bool {
	return c == RouteLandlord || c == RouteTenant
}
