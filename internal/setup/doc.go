// Package setup checks that a host can run pbuild: the build backend, the
// bootstrap tools and sudo must all be installed.
//
// This package is a collection of host checks and constants, and is therefore
// the only package that is allowed to use a package-level logger.
package setup
