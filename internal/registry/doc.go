// Package registry loads and caches the declaration-package index: a mapping
// from package name to known published versions. The index is fetched once
// over HTTP, validated against an embedded JSON schema, snapshotted to disk,
// and answered from memory so lookups never block editor-latency callers.
package registry
