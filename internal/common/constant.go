// Package common contains shared constants and small helpers used across
// fieldsync components.
package common

// Header names attached to outbound API requests.
const (
	AuthorizationHeaderName = "Authorization"
	DeviceIDHeaderName      = "X-Device-Id"
	RequestIDHeaderName     = "X-Request-Id"
)

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "
