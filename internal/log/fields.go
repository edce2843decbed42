package log

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldSessionID     = "session_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldDescription   = "description"
	FieldAmount        = "amount"
	FieldKind          = "kind"
	FieldBalance       = "balance"
	FieldCount         = "count"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentTracker   = "tracker"
	ComponentSession   = "session"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentEvents    = "events"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
	ComponentShell     = "shell"
)

// Ledger operations.
const (
	OpAdd      = "add"
	OpRemove   = "remove"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
)

const ErrorTypeNetwork = "network_error"

// Fields is an ordered list of key/value pairs ready for slog. Keys keep the
// order they were added in, so log lines stay stable between runs.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) add(key string, value any) Fields {
	return append(f, key, value)
}

func (f Fields) WithSession(sessionID string) Fields {
	return f.add(FieldSessionID, sessionID)
}

func (f Fields) WithClientIP(ip string) Fields {
	return f.add(FieldClientIP, ip)
}

// WithError adds the error message. A nil error adds nothing.
func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

func (f Fields) WithOperation(op string) Fields {
	return f.add(FieldOperation, op)
}

// WithTransaction adds one ledger entry. amount is the decimal text, never a
// float.
func (f Fields) WithTransaction(id int64, desc, amount, kind string) Fields {
	return f.add(FieldTransactionID, id).
		add(FieldDescription, desc).
		add(FieldAmount, amount).
		add(FieldKind, kind)
}

func (f Fields) WithRoute(method, path string) Fields {
	return f.add(FieldMethod, method).add(FieldPath, path)
}

func (f Fields) WithStatus(statusCode int, durationMs int64) Fields {
	return f.add(FieldStatusCode, statusCode).add(FieldDuration, durationMs)
}
