package api

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/middleware"
	"github.com/rentfold/rentfold/pkg/observability"
)

// PageHandlers serves the server-rendered pages behind the page
// middleware. Pages redirect on auth failures instead of returning JSON.
type PageHandlers struct {
	pages  *middleware.PageMiddleware
	logger *observability.Logger
}

// NewPageHandlers creates the page handlers
func NewPageHandlers(pages *middleware.PageMiddleware, logger *observability.Logger) *PageHandlers {
	return &PageHandlers{pages: pages, logger: logger}
}

// RegisterRoutes registers the page routes behind the page middleware
func (h *PageHandlers) RegisterRoutes(router *mux.Router, registrationPath string) {
	router.HandleFunc("/dashboard", h.pages.WithPage(middleware.PageOptions{
		Roles:            []authz.Role{authz.RoleLandlord, authz.RoleTenant, authz.RolePMC},
		RegistrationPath: registrationPath,
	}, h.dashboard)).Methods("GET")
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
<h1>Welcome, {{.Name}}</h1>
<p>Signed in as {{.Role}}.</p>
{{if .ManagedBy}}<p>Your properties are managed by {{.ManagedBy}}.</p>{{end}}
</body>
</html>
`))

// dashboard handles GET /dashboard. Landlords managed by an active PMC
// get the managing-company banner.
func (h *PageHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	uc, _ := authz.FromContext(r.Context())

	data := struct {
		Name      string
		Role      authz.Role
		ManagedBy string
	}{Name: uc.ActorName(), Role: uc.Role()}

	if uc.Role() == authz.RoleLandlord {
		mc, err := h.pages.ManagedBy(r.Context(), uc.ActorID())
		if err != nil {
			// The banner is decoration; the page still renders.
			h.logger.WithError(err).WithField("landlord_id", uc.ActorID()).
				Warn("failed to resolve managing company")
		} else if mc != nil {
			data.ManagedBy = mc.Name
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		h.logger.WithError(err).Error("failed to render dashboard")
	}
}
