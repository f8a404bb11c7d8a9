package middlewares

const (
	// CtxRequestID carries the request correlation id.
	CtxRequestID = "request_id"
	// CtxUser carries the authenticated domain user, set by Authenticate.
	CtxUser = "auth.user"
)
