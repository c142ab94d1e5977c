package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldOwner      = "owner"
	FieldRecordID   = "record_id"
	FieldList       = "list"
	FieldAmount     = "amount_cents"
	FieldBackend    = "backend"
	FieldEmail      = "email"
	FieldSeq        = "seq"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentNotify  = "notify"
	ComponentAuth    = "auth"
	ComponentBackend = "backend"
	ComponentWS      = "ws"
)

// Standard operation names.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSignIn   = "sign_in"
	OpSignUp   = "sign_up"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
