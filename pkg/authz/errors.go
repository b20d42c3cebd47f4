package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rentfold/rentfold/pkg/identity"
)

// ErrNoIdentity means the email maps to no usable actor record at all
var ErrNoIdentity = errors.New("user not found")

// ApprovalError rejects an actor whose account approval state is not
// active. It is distinguishable from a generic authorization failure so
// the client can branch to a pending-approval experience.
type ApprovalError struct {
	Role   Role
	Status identity.ApprovalStatus
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%s account is not approved (status %s)", e.Role, e.Status)
}

// AsApprovalError unwraps err into an ApprovalError, if it is one
func AsApprovalError(err error) (*ApprovalError, bool) {
	var ae *ApprovalError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// RouteRoleError rejects a request whose route demands a role the caller
// does not hold
type RouteRoleError struct {
	Class RouteClass
}

func (e *RouteRoleError) Error() string {
	return fmt.Sprintf("access denied: this route requires a %s account", e.Class)
}

// AsRouteRoleError unwraps err into a RouteRoleError, if it is one
func AsRouteRoleError(err error) (*RouteRoleError, bool) {
	var re *RouteRoleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// RolePermissionError rejects an actor whose identities all fall outside
// the handler's permitted-role set. The message names the required roles
// so the client knows what account type the endpoint serves.
type RolePermissionError struct {
	Required []Role
}

func (e *RolePermissionError) Error() string {
	names := make([]string, len(e.Required))
	for i, r := range e.Required {
		names[i] = string(r)
	}
	if len(names) == 1 {
		return fmt.Sprintf("Access denied: this action requires the %s role", names[0])
	}
	return fmt.Sprintf("Access denied: this action requires one of the roles: %s", strings.Join(names, ", "))
}

// AsRolePermissionError unwraps err into a RolePermissionError, if it is one
func AsRolePermissionError(err error) (*RolePermissionError, bool) {
	var pe *RolePermissionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
