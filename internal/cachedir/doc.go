// Package cachedir resolves the on-disk layout of the TypeDock home
// directory: the shared typings cache root, the registry index snapshot, and
// the staging area used for atomic installs.
package cachedir
