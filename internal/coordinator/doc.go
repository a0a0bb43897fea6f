// Package coordinator serializes acquisition requests: a FIFO queue per
// cache root guarantees at most one install execution per root at a time,
// and a tagged response protocol reports begin/end and per-package outcomes
// back to the language-service boundary.
package coordinator
