// Package middleware provides the HTTP middleware of the playground API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - Auth: Optional HS256 bearer tokens resolving the request's user
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.Use(middleware.Auth(middleware.NewAuthenticator(secret, "livecode", time.Hour)))
package middleware
