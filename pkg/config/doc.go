// Package config loads application configuration from environment
// variables.
//
// Most variables use the RENTFOLD_ prefix. Two names are kept unprefixed
// for compatibility with existing deployments: ADMIN_SESSION_MAX_AGE
// (admin session TTL, in milliseconds) and WEB_APP_URL (the CORS origin
// reflected for admin API routes in production).
package config
