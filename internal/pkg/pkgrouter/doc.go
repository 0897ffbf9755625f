// Package pkgrouter wraps HTTP routing and common middleware used by the API.
//
// It provides a small router abstraction over httprouter plus shared concerns:
// the JSON response envelope, error mapping, request logging that leaves
// streamed uploads untouched, panic recovery and correlation ID propagation.
package pkgrouter
