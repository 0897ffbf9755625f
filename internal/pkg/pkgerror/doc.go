// Package pkgerror defines shared error types and sentinel errors used across
// the application.
//
// Storage returns sentinels such as ErrNotFound; use cases translate them into
// *Error values carrying a message, a type and a code, which the router maps
// to HTTP status codes.
package pkgerror
