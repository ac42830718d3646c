package values

type contextKey string

// ContextTracingKey holds the tracing.Context of a request.
const ContextTracingKey contextKey = "tracing-context"

const (
	HeaderRequestSource = "X-Request-Source"
	HeaderRequestID     = "X-Request-ID"
)

// Response statuses. util.StatusCode maps them to HTTP codes.
const (
	Success        = "success"
	Created        = "created"
	Error          = "error"
	Failed         = "failed"
	SystemErr      = "system-error"
	BadRequestBody = "bad-request-body"
	Unprocessable  = "unprocessable"
	NotAllowed     = "not-allowed"
	Conflict       = "conflict"
	NotFound       = "not-found"
	NotAuthorised  = "not-authorised"
	TokenExpired   = "token-expired"
)

// ContextSubjectKey holds the subject of the verified access token.
const ContextSubjectKey contextKey = "token-subject"
