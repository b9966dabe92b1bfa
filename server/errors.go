package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tarcizioo/portal-animes-V2-sub001/filter"
	"github.com/Tarcizioo/portal-animes-V2-sub001/jikan"
	"github.com/Tarcizioo/portal-animes-V2-sub001/store"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusClientClosedRequest is nginx's status for a client that went away
const statusClientClosedRequest = 499

// errNotConfigured is returned by routes whose backing service is disabled
var errNotConfigured = errors.New("feature is not configured")

// statusFor maps a domain error onto an HTTP status
func statusFor(err error) int {
	var httpErr *jikan.HTTPError
	var compErr *filter.CompilationError

	switch {
	case errors.Is(err, usersync.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, usersync.ErrCapExceeded):
		return http.StatusConflict
	case errors.Is(err, store.ErrPrivateProfile), errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, usersync.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usersync.ErrInvalidInput), errors.As(err, &compErr):
		return http.StatusBadRequest
	case errors.Is(err, jikan.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		if httpErr.IsNotFound() {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, jikan.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError replies with the status for err. Internal errors are logged
// and their details withheld.
func abortWithError(c *gin.Context, err error) {
	code := statusFor(err)
	_ = c.Error(err)

	resp := ErrorResponse{Error: http.StatusText(code)}
	if code != http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(code, resp)
}

func badRequest(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: http.StatusText(http.StatusBadRequest), Details: details})
}
