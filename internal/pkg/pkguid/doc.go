// Package pkguid provides helpers for generating unique identifiers.
//
// Callers depend on the interfaces so tests can plug in fixed values:
//   - StringID (UUIDv7) names replays and correlates HTTP requests.
//   - NumberID (Snowflake) numbers rejection events for the audit consumer.
package pkguid
