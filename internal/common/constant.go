// Package common contains shared constants and sentinel errors used across
// memberkeeper components.
package common

// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC metadata key)
// carrying the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"
