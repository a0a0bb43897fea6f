// Package installer materializes install plans into the shared typings
// cache: it resolves the dependency closure, fetches and extracts package
// tarballs into a staging area, and renames them into the visible tree so
// concurrent readers never observe a half-installed state.
package installer
