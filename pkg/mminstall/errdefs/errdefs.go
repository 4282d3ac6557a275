// Package errdefs defines the error classes shared by the installer packages.
//
// Packages return typed errors (or wrap these sentinels with fmt.Errorf) so
// callers can classify a failure with errors.Is without depending on the
// package that produced it.
package errdefs

import "errors"

var (
	// ErrFormat indicates a manifest or ledger document that does not parse.
	ErrFormat = errors.New("malformed document")

	// ErrValidation indicates a manifest that parses but violates an invariant.
	ErrValidation = errors.New("validation failed")

	// ErrIO indicates a filesystem read, write, or rename failure.
	ErrIO = errors.New("i/o failure")

	// ErrHTTP indicates a non-2xx HTTP response.
	ErrHTTP = errors.New("http request failed")

	// ErrNameResolution indicates that no destination file name could be derived.
	ErrNameResolution = errors.New("cannot derive file name")

	// ErrIntegrity indicates a hash mismatch or a resolved source identity mismatch.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrNotFound indicates that a referenced repository version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoFiles indicates a repository version without any files.
	ErrNoFiles = errors.New("version has no files")

	// ErrBusy indicates that an install run is already in progress.
	ErrBusy = errors.New("installer is already running")
)
