package handlers

import (
	"errors"
	"net/http"

	"support-service/internal/apperrors"
	"support-service/utils"

	"github.com/gin-gonic/gin"
)

// httpStatus maps domain errors to HTTP status codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(httpStatus(err), utils.CreateErrorResponse(apperrors.Code(err), err.Error()))
}
