// Package api wires the HTTP surface: admin authentication endpoints
// behind the admin CORS layer, the user status probe, and the role-scoped
// portal routes behind the authorization middleware.
package api
