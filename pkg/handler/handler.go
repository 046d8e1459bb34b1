// Package handler exposes the listing enrichment and similarity search use
// cases over HTTP. The surface is thin: handlers parse and validate the
// request, call the service and translate domain errors to status codes.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"github.com/listhub/listing-backend/pkg/types"

	errorsx "github.com/listhub/listing-backend/pkg/errors"
)

// errorStatus maps a domain error to an HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errorsx.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errorsx.ErrAlreadyProcessing):
		return http.StatusConflict
	case errors.Is(err, errorsx.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errorsx.ErrNoImage), errors.Is(err, errorsx.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errorsx.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the JSON error response for a domain error. The body
// carries the end-user message when one was attached, never the internals of
// a 5xx error.
func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	message := errorsx.MessageOrErr(err)
	if status == http.StatusInternalServerError {
		message = "Something went wrong. Please try again later."
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// pathUID parses a UUID path parameter, aborting the request with a 400 when
// it is malformed.
func pathUID(c *gin.Context, name string) (types.ListingUIDType, bool) {
	uid, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name + ": must be a UUID",
		})
		return uuid.Nil, false
	}
	return uid, true
}
