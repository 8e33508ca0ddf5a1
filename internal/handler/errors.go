package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/response"
	"github.com/provigil/proctor-backend/internal/service"
)

// failFromErr translates service-layer errors into the response envelope.
// Unrecognized errors become opaque 500s; details stay in the logs.
func failFromErr(c *gin.Context, err error) {
	var regErr *backend.RegistrationError
	if errors.As(err, &regErr) {
		response.Fail(c, regErr.HTTPStatus, response.ErrRegistrationFailed)
		return
	}

	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrExamExists):
		response.Fail(c, http.StatusConflict, response.ErrExamExists)
	case errors.Is(err, service.ErrExamNotActive):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrExamNotActive)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrAttemptExists):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExists)
	case errors.Is(err, service.ErrAttemptAlreadyStarted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadyStarted)
	case errors.Is(err, service.ErrIllegalStatusTransition):
		response.Fail(c, http.StatusConflict, response.ErrIllegalTransition)
	case errors.Is(err, service.ErrUnknownStatus):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrUserNotFound)
	case errors.Is(err, service.ErrInvalidAllowanceValue):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAllowance)
	case errors.Is(err, service.ErrReviewNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrReviewNotFound)
	case errors.Is(err, service.ErrReviewAlreadyExists):
		response.Fail(c, http.StatusConflict, response.ErrReviewExists)
	case errors.Is(err, service.ErrBadReviewStatus):
		response.Fail(c, http.StatusBadRequest, response.ErrBadReviewStatus)
	case errors.Is(err, service.ErrSuspiciousLookup):
		response.Fail(c, http.StatusBadRequest, response.ErrSuspiciousLookup)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
