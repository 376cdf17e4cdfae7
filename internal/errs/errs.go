// Package errs define custom error types and utilities.
//
// Its purpose is to create specific error structures
// (e.g. FieldErrors for path parameters or HTTPError for API responses)
// so clients receive consistent error messages for every failure the
// framework itself produces (unknown routes, rate limits, panics).
package errs
