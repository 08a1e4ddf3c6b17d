package log

// Common field names for structured logging
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
	FieldAccountID  = "account_id"
	FieldEntryID    = "entry_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_cents"
	FieldKind       = "kind"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentStore  = "store"
	ComponentEvents = "events"
	ComponentCache  = "cache"
)

// Operations defines standard operation names
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpImport   = "import"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
