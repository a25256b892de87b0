package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor, set by pkg/middleware
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Graph
	FieldSourceID     = "source_id"
	FieldTargetID     = "target_id"
	FieldRelationship = "relationship"
	FieldAttempt      = "attempt"

	// Tracing
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"

	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
