package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/httputil"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/middleware"
	"github.com/rentfold/rentfold/pkg/observability"
)

// UserHandlers serves the self-service user endpoints
type UserHandlers struct {
	dir    *identity.Directory
	logger *observability.Logger
}

// NewUserHandlers creates the user handlers
func NewUserHandlers(dir *identity.Directory, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{dir: dir, logger: logger}
}

// RegisterRoutes registers the user routes behind the auth middleware
func (h *UserHandlers) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware) {
	// The status probe is reachable by unapproved users; it is how a
	// pending account learns it is pending.
	router.HandleFunc(authz.StatusProbePath, auth.WithAuth(middleware.Options{
		AllowedMethods: []string{"GET"},
	}, h.status))
}

// status handles GET /api/v1/user/status. It reports the resolved role and
// the underlying account's approval state.
func (h *UserHandlers) status(w http.ResponseWriter, r *http.Request) {
	uc, ok := authz.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := map[string]interface{}{
		"role":  uc.Role(),
		"id":    uc.ActorID(),
		"email": uc.ActorEmail(),
		"name":  uc.ActorName(),
	}
	if scoped, ok := uc.(authz.OrgScoped); ok {
		if orgID, ok := scoped.Organization(); ok {
			resp["organizationId"] = orgID
		}
	}

	status, err := h.approvalStatus(r, uc)
	if err != nil {
		h.logger.WithError(err).Error("failed to load approval status")
		httputil.WriteInternalError(w, err, false)
		return
	}
	if status != "" {
		resp["approvalStatus"] = status
	}

	httputil.WriteSuccess(w, resp)
}

// approvalStatus re-reads the actor's approval state. The resolver only
// reveals approved identities on normal routes, so the probe goes back to
// the directory for the raw state.
func (h *UserHandlers) approvalStatus(r *http.Request, uc authz.UserContext) (identity.ApprovalStatus, error) {
	ids, err := h.dir.LookupByEmail(r.Context(), uc.ActorEmail())
	if err != nil {
		return "", err
	}

	switch uc.Role() {
	case authz.RoleLandlord:
		if ids.Landlord != nil {
			return ids.Landlord.ApprovalStatus, nil
		}
	case authz.RoleTenant:
		if ids.Tenant != nil {
			return ids.Tenant.ApprovalStatus, nil
		}
	case authz.RolePMC:
		if ids.DelegatedCompany != nil {
			return ids.DelegatedCompany.ApprovalStatus, nil
		}
		if ids.Company != nil {
			return ids.Company.ApprovalStatus, nil
		}
	case authz.RoleVendor, authz.RoleContractor:
		// Service providers have no approval gate
		return identity.StatusApproved, nil
	}
	return "", nil
}
