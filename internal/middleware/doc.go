// Package middleware holds the HTTP middleware of the dashboard server:
// request IDs, request logging, panic recovery, rate limiting, request
// deadlines, body limits, security headers, tracing and request metrics,
// plus payload validation for the JSON API.
//
// Recommended order:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.RealIP)
//	r.Use(telemetry.Handler)
//	r.Use(middleware.StructuredLogger(logger))
//	r.Use(middleware.Recoverer(errorHandler))
package middleware
