// Package gatekeeper implements the role resolution and session gating
// core for a community site backed by a document store and an external
// identity provider.
//
// It covers four concerns: single-use invitation code redemption
// (InvitationLedger), multi-source role resolution with a fixed
// precedence and fallback chain (RoleResolver), per-page admission
// decisions that tolerate identity-provider hydration latency
// (SessionGate), and a static page-to-role policy table (RoutePolicy).
//
// The package never owns the source of truth for a principal's role: the
// identity provider owns token claims, the profile document store owns
// the fallback role field. Everything here resolves and caches a view.
package gatekeeper
