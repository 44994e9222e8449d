package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, "invalid JSON: "+err.Error()))
		return false
	}
	return validateBound(c, req)
}

func validateBound(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// bindOptional is bindAndValidate for endpoints whose body may be omitted.
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, "invalid JSON: "+err.Error()))
		return false
	}
	return validateBound(c, req)
}

// parseUUIDParam reads a uuid path parameter, writing a 400 when malformed.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps the service error taxonomy onto an HTTP status and error
// code. A zero status means the error is internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, apierror.CodeNotFound
	case errors.Is(err, service.ErrInsufficientInventory):
		return http.StatusConflict, apierror.CodeInsufficientInventory
	case errors.Is(err, service.ErrAllocationMismatch):
		return http.StatusUnprocessableEntity, apierror.CodeAllocationMismatch
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, apierror.CodeInvalidInput
	}
	return 0, ""
}

// respondError writes domain errors with their message. Anything else is
// handed to the ErrorHandler middleware, which logs it and answers 500.
func respondError(c *gin.Context, err error) {
	if status, code := statusFor(err); status != 0 {
		c.JSON(status, apierror.WithCode(code, err.Error()))
		return
	}
	_ = c.Error(err)
}
