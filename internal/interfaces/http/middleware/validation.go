package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator registers JSON field names and the access_type tag on
// gin's validator
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("middleware: unexpected validator engine")
	}
	RegisterValidations(v)
	return nil
}

// RegisterValidations adds the custom tags to v
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("access_type", func(fl validator.FieldLevel) bool {
		_, err := tenancy.ParseAccessType(fl.Field().String())
		return err == nil
	})
}

// HandleValidationError answers 400 with one detail per rejected field.
// Errors that are not validation errors are reported as a bad request.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeBadRequest),
			dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Malformed request", requestID))
		return
	}

	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeValidation),
		dto.NewValidationErrorResponse("Request validation failed", requestID, details))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "min":
		return "Must have at least " + e.Param() + " value(s)"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "access_type":
		return "Must be 'read' or 'readwrite'"
	default:
		return "Invalid value"
	}
}
