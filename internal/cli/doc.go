// Package cli wires the cobra command tree for the typedock binary: one-shot
// acquisition, registry index management, cache inspection, and config.
package cli
