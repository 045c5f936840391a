// Package middleware provides HTTP middleware for the catalog API:
// request ids, structured access logging and Prometheus request metrics.
package middleware
