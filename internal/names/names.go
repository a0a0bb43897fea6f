// Package names classifies whether a string is a syntactically plausible
// declaration-package name. Validation is pure: no registry lookups, no I/O.
package names

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxLength is the longest name a registry will accept.
const MaxLength = 214

var (
	ErrEmptyName                = errors.New("package name is empty")
	ErrNameTooLong              = fmt.Errorf("package name exceeds %d characters", MaxLength)
	ErrNameStartsWithDot        = errors.New("package name starts with a dot")
	ErrNameStartsWithUnderscore = errors.New("package name starts with an underscore")
	ErrNameNotURISafe           = errors.New("package name contains non-URI-safe characters")
	ErrMalformedScope           = errors.New("scoped package name is malformed")
)

// Check validates a package name, including scoped names of the form
// "@scope/name" where both parts must validate independently.
func Check(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.HasPrefix(name, "@") {
		scope, rest, ok := strings.Cut(name[1:], "/")
		if !ok || scope == "" || rest == "" || strings.Contains(rest, "/") {
			return ErrMalformedScope
		}
		if err := checkPart(scope); err != nil {
			return err
		}
		return checkPart(rest)
	}
	return checkPart(name)
}

// IsValid reports whether Check accepts the name.
func IsValid(name string) bool {
	return Check(name) == nil
}

func checkPart(part string) error {
	switch {
	case part == "":
		return ErrEmptyName
	case len(part) > MaxLength:
		return ErrNameTooLong
	case part[0] == '.':
		return ErrNameStartsWithDot
	case part[0] == '_':
		return ErrNameStartsWithUnderscore
	}
	// A name is URI-safe when percent-encoding leaves it unchanged.
	if url.QueryEscape(part) != part {
		return ErrNameNotURISafe
	}
	return nil
}

// Mangle maps an import module name to its candidate declaration-package
// name. Scoped modules flatten to a single path segment so the declaration
// package can live in a flat namespace: "@scope/mod" -> "scope__mod".
func Mangle(moduleName string) string {
	if strings.HasPrefix(moduleName, "@") {
		if scope, rest, ok := strings.Cut(moduleName[1:], "/"); ok {
			return scope + "__" + rest
		}
	}
	return moduleName
}
