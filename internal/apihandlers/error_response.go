package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiError is the uniform error envelope. Consumers switch on the stable
// code rather than parsing messages:
// { "error": { "code": "conflict", "message": "item n-42 already resolved" } }
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCodes maps each HTTP status the API emits to its envelope code.
var errorCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusServiceUnavailable:  "unavailable",
	http.StatusInternalServerError: "internal_error",
}

func respondError(ctx *gin.Context, status int, msg string) {
	code, ok := errorCodes[status]
	if !ok {
		code = "error"
	}
	ctx.JSON(status, gin.H{"error": apiError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) { respondError(ctx, http.StatusBadRequest, msg) }

func NotFound(ctx *gin.Context, msg string) { respondError(ctx, http.StatusNotFound, msg) }

// Conflict covers resolve-twice and unknown-item triage resolutions.
func Conflict(ctx *gin.Context, msg string) { respondError(ctx, http.StatusConflict, msg) }

// Unavailable reports a surface that is configured off, like the job queue
// when redis is absent.
func Unavailable(ctx *gin.Context, msg string) { respondError(ctx, http.StatusServiceUnavailable, msg) }

func Internal(ctx *gin.Context, msg string) { respondError(ctx, http.StatusInternalServerError, msg) }
