package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Business error codes carried alongside the HTTP status. 0 means the
// status alone tells the story.
const (
	CodeNone                     = 0
	CodeIncorrectCurrentPassword = 300
	CodeNewPasswordMismatch      = 301
	CodeAccountLocked            = 302
	CodeAccountDisabled          = 303
	CodeBadCredentials           = 304
)

// ExceptionResponse is the error envelope for every non-2xx reply.
type ExceptionResponse struct {
	BusinessErrorCode        int               `json:"businessErrorCode,omitempty"`
	BusinessErrorDescription string            `json:"businessErrorDescription,omitempty"`
	Error                    string            `json:"error,omitempty"`
	RequestID                string            `json:"requestId,omitempty"`
	ValidationErrors         []string          `json:"validationErrors,omitempty"`
	Errors                   map[string]string `json:"errors,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondBusiness renders a business rule rejection with its code.
func RespondBusiness(ctx *gin.Context, status, code int, description string) {
	ctx.JSON(status, ExceptionResponse{
		BusinessErrorCode:        code,
		BusinessErrorDescription: description,
		Error:                    description,
		RequestID:                requestIDFrom(ctx),
	})
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, ExceptionResponse{
		Error:     message,
		RequestID: requestIDFrom(ctx),
	})
}

func RespondValidation(ctx *gin.Context, messages []string, fields map[string]string) {
	ctx.JSON(http.StatusBadRequest, ExceptionResponse{
		Error:            "Invalid request body",
		RequestID:        requestIDFrom(ctx),
		ValidationErrors: messages,
		Errors:           fields,
	})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, message)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message)
}

func RespondInternal(ctx *gin.Context) {
	RespondError(ctx, http.StatusInternalServerError, "Internal error, please try again later")
}
