// Package auth guards the health routes with JWT bearer tokens.
//
// The guard is optional: when no signing secret is configured the routes
// are served unauthenticated. Tokens are verified with an HMAC secret and,
// when configured, the expected issuer and audience.
package auth
