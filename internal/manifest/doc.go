// Package manifest provides read/write/exists primitives for the package.json
// manifest kept at the shared typings cache root, plus the minimal
// {"private": true} default written before the first install.
package manifest
