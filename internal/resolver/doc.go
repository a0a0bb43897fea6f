// Package resolver computes install plans: it maps requested declaration
// package names (with optional semver constraints) to the exact versions to
// materialize in the shared typings cache.
package resolver
