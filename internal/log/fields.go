package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldAccountCount  = "account_count"
	FieldPaymentAmount = "payment_amount"
	FieldStrategy      = "strategy"
	FieldAllocationID  = "allocation_id"
	FieldPlanName      = "plan_name"
	FieldNarrator      = "narrator"
	FieldAttempt       = "attempt"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentEngine    = "engine"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentNarration = "narration"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpAllocate = "allocate"
	OpNarrate  = "narrate"
	OpRecord   = "record"
	OpBackfill = "backfill"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
