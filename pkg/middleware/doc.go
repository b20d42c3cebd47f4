// Package middleware wires authentication, role resolution, approval
// gating, and quota metering in front of API handlers and server-rendered
// pages.
//
// The API pipeline runs in a fixed order: method check, admin session
// probe, web session fallback, identity resolution, permitted-role
// enforcement, quota metering. Each stage that rejects does so with the
// standard JSON error envelope; page failures redirect instead.
package middleware
