// Package authz implements the resource-level authorization decision
// function and the closed role/permission enumerations.
//
// The package holds no state: every decision is a pure function over the
// actor's decoded claims and the target resource's ownership metadata, so it
// can run in verification-only deployments without a database round-trip.
package authz
