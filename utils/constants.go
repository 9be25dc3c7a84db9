package utils

import (
	"time"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// ContextKey namespaces request-scoped values stored in a context.Context
type ContextKey string

// Request-scoped context keys set by the HTTP handlers
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	OperatorIDKey ContextKey = "operator_id"
)

// Webhook processing may wait for the conversation lock and for the admin
// form pauses, so it gets a longer deadline than management requests.
const WebhookTimeout = 2 * time.Minute
