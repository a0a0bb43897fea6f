// Package client is the boundary façade between the language-analysis
// service and the acquisition engine: synchronous name lookups, fire-and-
// forget install requests, and the exhaustive response dispatch that applies
// completed installs back to projects.
package client
